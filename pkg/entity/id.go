// Package entity defines the structured identifier scheme shared by every
// record the pipeline owns.
//
// An ID is six dot-separated numeric segments with fixed widths:
//
//	{domain}.{subdomain}.{kind}.{epochBucket}.{random}.{sequence}
//	   2         2         2         2           5         3
//
// The kind segment makes identifiers self-describing, so comparing a person
// ID against a company ID is detectable by format alone. IDs are immutable
// once assigned and validated at every write boundary.
package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"doctrine/pkg/pipeerrors"
)

// Kind identifies the record family an ID belongs to.
type Kind string

const (
	KindCompany Kind = "company"
	KindPerson  Kind = "person"
	KindSlot    Kind = "slot"
	KindSignal  Kind = "signal"
)

// segment codes per kind. The domain segment is fixed for this installation;
// the subdomain groups master records apart from intelligence records.
type kindCodes struct {
	domain    int
	subdomain int
	kind      int
}

var codes = map[Kind]kindCodes{
	KindCompany: {domain: 10, subdomain: 1, kind: 1},
	KindPerson:  {domain: 10, subdomain: 1, kind: 2},
	KindSlot:    {domain: 10, subdomain: 1, kind: 3},
	KindSignal:  {domain: 10, subdomain: 2, kind: 1},
}

var kindByCode = func() map[int]Kind {
	m := make(map[int]Kind, len(codes))
	for k, c := range codes {
		m[c.subdomain*100+c.kind] = k
	}
	return m
}()

// formatRE is the shape every ID must match regardless of kind.
var formatRE = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{2}\.\d{2}\.\d{5}\.\d{3}$`)

// epochStart anchors the bucket segment. Buckets wrap every 100 days, which
// is fine: the bucket exists to spread collisions, not to encode time.
var epochStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// ID is a validated entity identifier. Use Parse to construct one from
// untrusted input; Build for fresh generation.
type ID string

func (id ID) String() string { return string(id) }

// Valid reports whether the ID matches the six-segment shape and carries a
// known kind code.
func (id ID) Valid() bool {
	_, err := id.Kind()
	return err == nil
}

// Kind extracts the record family from the subdomain and kind segments.
func (id ID) Kind() (Kind, error) {
	if !formatRE.MatchString(string(id)) {
		return "", pipeerrors.Newf(pipeerrors.CodeBadRequest, "malformed entity id %q", string(id))
	}
	parts := strings.Split(string(id), ".")
	sub, _ := strconv.Atoi(parts[1])
	kc, _ := strconv.Atoi(parts[2])
	kind, ok := kindByCode[sub*100+kc]
	if !ok {
		return "", pipeerrors.Newf(pipeerrors.CodeBadRequest, "unknown kind code %s.%s in %q", parts[1], parts[2], string(id))
	}
	return kind, nil
}

// Parse validates untrusted input into an ID, optionally pinned to an
// expected kind. An empty expected kind accepts any known kind.
func Parse(raw string, expected Kind) (ID, error) {
	id := ID(raw)
	kind, err := id.Kind()
	if err != nil {
		return "", err
	}
	if expected != "" && kind != expected {
		return "", pipeerrors.Newf(pipeerrors.CodeBadRequest, "expected %s id, got %s id %q", expected, kind, raw)
	}
	return id, nil
}

// Build assembles an ID from its variable segments. random must be in
// [0,100000) and sequence in [0,1000); Build truncates by modulus rather
// than erroring since callers feed it generator output.
func Build(kind Kind, at time.Time, random, sequence int) (ID, error) {
	c, ok := codes[kind]
	if !ok {
		return "", pipeerrors.Newf(pipeerrors.CodeBadRequest, "unknown entity kind %q", kind)
	}
	bucket := int(at.Sub(epochStart).Hours()/24) % 100
	if bucket < 0 {
		bucket += 100
	}
	id := ID(fmt.Sprintf("%02d.%02d.%02d.%02d.%05d.%03d",
		c.domain, c.subdomain, c.kind, bucket,
		((random%100000)+100000)%100000,
		((sequence%1000)+1000)%1000,
	))
	return id, nil
}

// PatternFor returns the per-kind regular expression enforced at write
// boundaries (database CHECK constraints mirror it).
func PatternFor(kind Kind) (*regexp.Regexp, error) {
	c, ok := codes[kind]
	if !ok {
		return nil, pipeerrors.Newf(pipeerrors.CodeBadRequest, "unknown entity kind %q", kind)
	}
	return regexp.MustCompile(fmt.Sprintf(`^%02d\.%02d\.%02d\.\d{2}\.\d{5}\.\d{3}$`, c.domain, c.subdomain, c.kind)), nil
}
