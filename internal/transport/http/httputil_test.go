package httptransport

import (
	"errors"
	"net/http"
	"testing"

	"doctrine/pkg/pipeerrors"
	"doctrine/pkg/testutil"
)

func errorHandler(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, err)
	})
}

func TestWriteError_CodedErrorCarriesDescription(t *testing.T) {
	handler := errorHandler(pipeerrors.New(pipeerrors.CodeNotFound, "record not found"))

	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/whatever"))

	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertErrorCode(t, rr, string(pipeerrors.CodeNotFound))
	body := testutil.UnmarshalResponse[map[string]string](t, rr)
	if got := (*body)["error_description"]; got != "record not found" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestWriteError_InternalOmitsDescription(t *testing.T) {
	handler := errorHandler(errors.New("pq: connection refused"))

	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/whatever"))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertErrorCode(t, rr, string(pipeerrors.CodeInternal))
	body := testutil.UnmarshalResponse[map[string]string](t, rr)
	if _, leaked := (*body)["error_description"]; leaked {
		t.Fatal("internal error description must not reach clients")
	}
}

func TestWriteError_BudgetRejectionMapsToPaymentRequired(t *testing.T) {
	handler := errorHandler(pipeerrors.New(pipeerrors.CodeBudgetRejected, "estimate exceeds ceiling"))

	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/whatever"))

	testutil.AssertStatus(t, rr, http.StatusPaymentRequired)
	testutil.AssertErrorCode(t, rr, string(pipeerrors.CodeBudgetRejected))
}

func TestDecodeJSON_MalformedBodyIsBadRequest(t *testing.T) {
	req := testutil.NewJSONRequest(t, http.MethodPost, "/whatever", nil)
	req.Body = http.NoBody

	var dst struct{}
	err := decodeJSON(req, &dst)
	if !pipeerrors.HasCode(err, pipeerrors.CodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
