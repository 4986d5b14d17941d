package model

import "testing"

func TestViolationActionValid(t *testing.T) {
	for _, a := range []ViolationAction{ActionApprove, ActionRetake, ActionDebar} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	for _, a := range []ViolationAction{"", "forgive", "APPROVE", "retake_allowed"} {
		if a.Valid() {
			t.Errorf("%q should be rejected", a)
		}
	}
}

func TestActionTargetStatus(t *testing.T) {
	cases := []struct {
		action  ViolationAction
		status  ViolationStatus
		qStatus QueryStatus
	}{
		{ActionApprove, ViolationApproved, QueryApproved},
		{ActionRetake, ViolationRetakeAllowed, QueryRetakeAllowed},
		{ActionDebar, ViolationDebarred, QueryDebarred},
	}
	for _, tc := range cases {
		status, qStatus := tc.action.TargetStatus()
		if status != tc.status || qStatus != tc.qStatus {
			t.Errorf("%s -> (%s, %s), want (%s, %s)", tc.action, status, qStatus, tc.status, tc.qStatus)
		}
	}
}

func TestViolationStatusTerminal(t *testing.T) {
	terminal := map[ViolationStatus]bool{
		ViolationPending:        false,
		ViolationQuerySubmitted: false,
		ViolationApproved:       true,
		ViolationRetakeAllowed:  true,
		ViolationDebarred:       true,
	}
	for status, want := range terminal {
		if status.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, !want, want)
		}
	}
}

func TestViolationStatusScanRejectsUnknown(t *testing.T) {
	var s ViolationStatus
	if err := s.Scan([]byte("pending")); err != nil {
		t.Fatalf("scan pending: %v", err)
	}
	if s != ViolationPending {
		t.Errorf("s = %s", s)
	}
	if err := s.Scan([]byte("exploded")); err == nil {
		t.Error("unknown status must fail to scan")
	}
	if _, err := ViolationStatus("exploded").Value(); err == nil {
		t.Error("unknown status must fail to store")
	}
}
