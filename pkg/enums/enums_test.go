package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("place_deleted")
	if err != nil || got != EventPlaceDeleted {
		t.Fatalf("expected place_deleted, got %q err=%v", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestParseOutboxAggregateType(t *testing.T) {
	if got, err := ParseOutboxAggregateType("place"); err != nil || got != AggregatePlace {
		t.Fatalf("expected place aggregate, got %q err=%v", got, err)
	}
	if _, err := ParseOutboxAggregateType("store"); err == nil {
		t.Fatalf("expected error for unknown aggregate")
	}
}

func TestParseMembershipAction(t *testing.T) {
	if got, err := ParseMembershipAction("leave"); err != nil || got != MembershipActionLeave {
		t.Fatalf("expected leave, got %q err=%v", got, err)
	}
	if _, err := ParseMembershipAction("kick"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestOutboxDLQErrorReasonIsValid(t *testing.T) {
	for _, reason := range []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable} {
		if !reason.IsValid() {
			t.Fatalf("%s should be valid", reason)
		}
	}
	if OutboxDLQErrorReason("whatever").IsValid() {
		t.Fatalf("unknown reason should be invalid")
	}
}
