package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRendering(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		public    string
		retryable bool
		echoes    bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, "validation failed", false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, "authentication required", false, true, false},
		{CodeForbidden, http.StatusForbidden, "access denied", false, true, false},
		{CodeNotFound, http.StatusNotFound, "resource not found", false, true, false},
		{CodeConflict, http.StatusConflict, "conflict detected", false, true, false},
		{CodePartialFailure, http.StatusBadGateway, "operation partially applied", false, true, true},
		{CodeInternal, http.StatusInternalServerError, "internal server error", true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", true, false, true},
		{"SOMETHING_UNKNOWN", http.StatusInternalServerError, "internal server error", true, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.public, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.echoes, meta.ClientMessage)
			assert.Equal(t, tt.details, meta.DetailsAllowed)
		})
	}
}

func TestErrorCarriesCodeMessageAndCause(t *testing.T) {
	plain := Newf(CodeValidation, "at most %d images", 5)
	assert.Equal(t, CodeValidation, plain.Code())
	assert.Equal(t, "at most 5 images", plain.Message())
	assert.Nil(t, plain.Details())
	assert.Equal(t, "VALIDATION_ERROR: at most 5 images", plain.Error())

	plain.WithDetails(map[string]string{"images": "too many"})
	assert.Equal(t, map[string]string{"images": "too many"}, plain.Details())

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "load user")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load user: connection reset", wrapped.Error())

	assert.Nil(t, Wrap(CodeConflict, nil, "dup").Unwrap())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("ignored"))
	assert.Nil(t, As(nil))
}

func TestCodeLookupThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodePartialFailure, "2 of 3 uploads failed"))
	require.NotNil(t, As(wrapped))
	assert.Equal(t, CodePartialFailure, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodePartialFailure))
	assert.False(t, Is(wrapped, CodeNotFound))
	assert.False(t, Retryable(wrapped))

	untyped := stdErrors.New("plain")
	assert.Equal(t, CodeInternal, CodeOf(untyped))
	assert.True(t, Retryable(untyped))
	assert.True(t, Retryable(Wrap(CodeDependency, untyped, "ping redis")))
}

func TestFromStoreClassifiesSQLState(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "place_members_pkey"}, CodeConflict},
		{"foreign key via pq", &pq.Error{Code: "23503"}, CodeNotFound},
		{"check", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"}), CodeValidation},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, CodeDependency},
		{"plain", stdErrors.New("connection reset"), CodeDependency},
	}
	for _, tt := range tests {
		got := FromStore(tt.err, "save place")
		if got.Code() != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.name, tt.want, got.Code())
		}
		if !stdErrors.Is(got, tt.err) {
			t.Fatalf("%s: cause not preserved", tt.name)
		}
	}
}

func TestLogFieldsIncludesPostgresDetail(t *testing.T) {
	err := Wrap(CodeConflict, &pgconn.PgError{Code: "23505", TableName: "users", ConstraintName: "users_pkey"}, "register user")
	fields := LogFields(err)
	if fields["error_code"] != CodeConflict {
		t.Fatalf("unexpected code %v", fields["error_code"])
	}
	if fields["pg_table"] != "users" || fields["pg_constraint"] != "users_pkey" {
		t.Fatalf("expected postgres detail, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty postgres fields should be omitted")
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 2 {
		t.Fatalf("expected two-link chain, got %v", fields["error_chain"])
	}

	plain := LogFields(stdErrors.New("boom"))
	if plain["error_code"] != CodeInternal || plain["error_chain"] != nil {
		t.Fatalf("unexpected fields for plain error %v", plain)
	}
}
