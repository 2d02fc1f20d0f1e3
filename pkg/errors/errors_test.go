package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodeNotFound, http.StatusNotFound, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true},
		{CodeIdempotency, http.StatusConflict, false, true},
		{CodeRateLimit, http.StatusTooManyRequests, true, false},
		{CodeInsufficient, http.StatusPaymentRequired, false, true},
		{CodePayment, http.StatusBadGateway, true, true},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status || meta.Retryable != tt.retryable || meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s: unexpected metadata %+v", tt.code, meta)
		}
	}
	if MetadataFor("SOMETHING_UNKNOWN").HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes must render as internal")
	}
}

func TestPublicMessage(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{New(CodeInsufficient, "Insufficient SOL balance"), "Insufficient SOL balance"},
		{New(CodeNotFound, ""), "resource not found"},
		{Wrap(CodeInternal, stdErrors.New("nil map"), "render cart"), "Something went wrong."},
		{Wrap(CodeDependency, stdErrors.New("dial tcp"), "fetch prices"), "dependency unavailable"},
	}
	for _, tc := range cases {
		if got := PublicMessage(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.err.Code(), tc.want, got)
		}
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing city")
	if base.Code() != CodeValidation || base.Message() != "missing city" || base.Details() != nil {
		t.Fatalf("unexpected base error %+v", base)
	}
	if base.WithDetails(map[string]any{"field": "city"}).Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) || wrapped.Code() != CodeConflict {
		t.Fatalf("Wrap did not preserve cause or code")
	}
	if Newf(CodeValidation, "field %s is required", "city").Message() != "field city is required" {
		t.Fatalf("Newf did not format")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	outer := fmt.Errorf("submit: %w", New(CodeInsufficient, "Insufficient SOL balance"))
	if !IsCode(outer, CodeInsufficient) || IsCode(outer, CodePayment) {
		t.Fatalf("IsCode did not follow the chain")
	}
	if As(nil) != nil || IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(stdErrors.New("connection reset")) {
		t.Fatalf("untyped errors are retried")
	}
	if IsRetryable(New(CodeValidation, "bad booking")) {
		t.Fatalf("validation failures are final")
	}
	if !IsRetryable(fmt.Errorf("book: %w", New(CodeDependency, "backend down"))) {
		t.Fatalf("dependency failures are retried")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

func TestDumpCollectsChainAndUpstream(t *testing.T) {
	upstream := &UpstreamError{Service: "backend", Status: http.StatusBadGateway, Body: "bad gateway"}
	err := fmt.Errorf("book: %w", Wrap(CodeDependency, upstream, "create booking"))

	dump := Dump(err)
	if dump.Code != CodeDependency || len(dump.Chain) != 3 {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if dump.Upstream != "backend" || dump.UpstreamStatus != http.StatusBadGateway {
		t.Fatalf("expected upstream details, got %+v", dump)
	}
	fields := dump.Fields()
	if fields["upstream_status"] != http.StatusBadGateway {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("empty postgres fields should be omitted")
	}
}

func TestDumpCollectsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "payment_receipts_signature_key", TableName: "payment_receipts"}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert receipt"))
	if dump.PGCode != "23505" || dump.PGConstraint != "payment_receipts_signature_key" {
		t.Fatalf("unexpected dump %+v", dump)
	}
}
