package handlers

import (
	"context"
	"testing"

	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"github.com/uniplus/uniplus-api/internal/notifier"
	"gorm.io/gorm"
)

func registerAttendee(t *testing.T, env *testEnv, event models.Event, user models.User) models.Ticket {
	t.Helper()
	req := &RegisterRequest{AuthInput: asUser(t, env.auth, user), EventID: event.ID}
	resp, err := env.registrations.HandleRegister(context.Background(), req)
	if err != nil {
		t.Fatalf("registration for %s failed: %v", user.Username, err)
	}
	var ticket models.Ticket
	if err := env.db.First(&ticket, resp.Body.TicketID).Error; err != nil {
		t.Fatalf("ticket not found: %v", err)
	}
	return ticket
}

func TestHandleApprove(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	attendee := createUser(t, env.db, "alice", models.RoleStudent)
	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, attendee)

	req := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticket.TicketNumber,
	}
	resp, err := env.approvals.HandleApprove(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleApprove returned error: %v", err)
	}
	if resp.Body.Status != models.ApprovalApproved {
		t.Errorf("expected approved status, got %s", resp.Body.Status)
	}

	var updated models.Ticket
	env.db.First(&updated, ticket.ID)
	if updated.ApprovalStatus != models.ApprovalApproved || updated.ApprovedAt == nil {
		t.Errorf("ticket not approved: status=%s approvedAt=%v", updated.ApprovalStatus, updated.ApprovedAt)
	}

	// Roster unchanged by approval.
	var reloaded models.Event
	env.db.First(&reloaded, event.ID)
	if !reloaded.HasAttendee(attendee.ID) {
		t.Error("attendee dropped from roster on approval")
	}

	// Idempotent re-approval keeps the original timestamp.
	firstApprovedAt := *updated.ApprovedAt
	if _, err := env.approvals.HandleApprove(context.Background(), req); err != nil {
		t.Fatalf("re-approval errored: %v", err)
	}
	env.db.First(&updated, ticket.ID)
	if !updated.ApprovedAt.Equal(firstApprovedAt) {
		t.Error("re-approval overwrote approved_at")
	}
}

func TestHandleApprove_ByQRCode(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	attendee := createUser(t, env.db, "alice", models.RoleStudent)
	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, attendee)

	req := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticket.QRCode,
	}
	if _, err := env.approvals.HandleApprove(context.Background(), req); err != nil {
		t.Fatalf("approval by QR code failed: %v", err)
	}
}

func TestHandleReject_RemovesFromRosterUnconditionally(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	event := createWorkshop(t, env.db, organizer, nil)

	// Case 1: reject a still-pending ticket. Earlier revisions leaked the
	// roster entry here.
	pending := createUser(t, env.db, "pending-user", models.RoleStudent)
	pendingTicket := registerAttendee(t, env, event, pending)

	req := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  pendingTicket.TicketNumber,
	}
	if _, err := env.approvals.HandleReject(context.Background(), req); err != nil {
		t.Fatalf("reject of pending ticket failed: %v", err)
	}
	var reloaded models.Event
	env.db.First(&reloaded, event.ID)
	if reloaded.HasAttendee(pending.ID) {
		t.Error("rejecting a pending ticket left the attendee on the roster")
	}

	// Case 2: approve then reject.
	approved := createUser(t, env.db, "approved-user", models.RoleStudent)
	approvedTicket := registerAttendee(t, env, event, approved)
	req.TicketID = approvedTicket.TicketNumber
	if _, err := env.approvals.HandleApprove(context.Background(), req); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	env.db.First(&reloaded, event.ID)
	if !reloaded.HasAttendee(approved.ID) {
		t.Fatal("attendee missing from roster after approval")
	}
	if _, err := env.approvals.HandleReject(context.Background(), req); err != nil {
		t.Fatalf("reject after approve failed: %v", err)
	}
	env.db.First(&reloaded, event.ID)
	if reloaded.HasAttendee(approved.ID) {
		t.Error("rejecting an approved ticket left the attendee on the roster")
	}

	var rejected models.Ticket
	env.db.First(&rejected, approvedTicket.ID)
	if rejected.ApprovalStatus != models.ApprovalRejected || rejected.RejectedAt == nil {
		t.Errorf("ticket not rejected: %s", rejected.ApprovalStatus)
	}
}

func TestHandleApprove_RejectedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	attendee := createUser(t, env.db, "alice", models.RoleStudent)
	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, attendee)

	req := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticket.TicketNumber,
	}
	if _, err := env.approvals.HandleReject(context.Background(), req); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := env.approvals.HandleApprove(context.Background(), req)
	assertStatus(t, err, 409)

	// Re-rejecting stays a quiet no-op.
	if _, err := env.approvals.HandleReject(context.Background(), req); err != nil {
		t.Errorf("re-reject errored: %v", err)
	}
}

func TestHandleApprove_Authorization(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	stranger := createUser(t, env.db, "stranger", models.RoleOrganizer)
	attendee := createUser(t, env.db, "alice", models.RoleStudent)
	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, attendee)

	req := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, stranger),
		EventID:   event.ID,
		TicketID:  ticket.TicketNumber,
	}
	_, err := env.approvals.HandleApprove(context.Background(), req)
	assertStatus(t, err, 403)

	req.AuthInput = asUser(t, env.auth, organizer)
	req.TicketID = "T999999"
	_, err = env.approvals.HandleApprove(context.Background(), req)
	assertStatus(t, err, 404)
}

func TestHandleBulkAction(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	event := createWorkshop(t, env.db, organizer, nil)

	t1 := registerAttendee(t, env, event, createUser(t, env.db, "u1", models.RoleStudent))
	t2 := registerAttendee(t, env, event, createUser(t, env.db, "u2", models.RoleStudent))

	req := &BulkActionRequest{AuthInput: asUser(t, env.auth, organizer), EventID: event.ID}
	req.Body.TicketIDs = []string{t1.TicketNumber, t2.TicketNumber, "T424242"}
	req.Body.Action = "approve"

	resp, err := env.approvals.HandleBulkAction(context.Background(), req)
	if err != nil {
		t.Fatalf("bulk approve failed: %v", err)
	}
	if resp.Body.ProcessedCount != 2 {
		t.Errorf("expected 2 processed (missing ref skipped), got %d", resp.Body.ProcessedCount)
	}

	req.Body.TicketIDs = []string{t1.TicketNumber}
	req.Body.Action = "reject"
	resp, err = env.approvals.HandleBulkAction(context.Background(), req)
	if err != nil {
		t.Fatalf("bulk reject failed: %v", err)
	}
	if resp.Body.ProcessedCount != 1 {
		t.Errorf("expected 1 processed, got %d", resp.Body.ProcessedCount)
	}

	var reloaded models.Event
	env.db.First(&reloaded, event.ID)
	if reloaded.HasAttendee(t1.AttendeeID) {
		t.Error("bulk reject left attendee on roster")
	}
	if !reloaded.HasAttendee(t2.AttendeeID) {
		t.Error("bulk reject removed the wrong attendee")
	}
}

// Full capacity lifecycle: one seat, register, approve, blocked second
// registration, reject frees the seat, second attendee gets in.
func TestCapacityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	x := createUser(t, env.db, "x", models.RoleStudent)
	y := createUser(t, env.db, "y", models.RoleStudent)
	event := createWorkshop(t, env.db, organizer, capOf(1))

	ticketX := registerAttendee(t, env, event, x)
	if len(ticketX.EventDates) != 2 {
		t.Fatalf("expected 2 snapshot dates, got %d", len(ticketX.EventDates))
	}

	approveReq := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticketX.TicketNumber,
	}
	if _, err := env.approvals.HandleApprove(context.Background(), approveReq); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	regY := &RegisterRequest{AuthInput: asUser(t, env.auth, y), EventID: event.ID}
	_, err := env.registrations.HandleRegister(context.Background(), regY)
	assertStatus(t, err, 409)

	if _, err := env.approvals.HandleReject(context.Background(), approveReq); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	var reloaded models.Event
	env.db.First(&reloaded, event.ID)
	if len(reloaded.AttendeeIDs) != 0 {
		t.Fatalf("expected empty roster after reject, got %v", reloaded.AttendeeIDs)
	}

	if _, err := env.registrations.HandleRegister(context.Background(), regY); err != nil {
		t.Fatalf("registration after freed spot failed: %v", err)
	}
	env.db.First(&reloaded, event.ID)
	if len(reloaded.AttendeeIDs) != 1 || reloaded.AttendeeIDs[0] != y.ID {
		t.Errorf("expected roster [%d], got %v", y.ID, reloaded.AttendeeIDs)
	}
}

func TestHandleListRegistrations(t *testing.T) {
	env := newTestEnv(t)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, createUser(t, env.db, "u1", models.RoleStudent))
	registerAttendee(t, env, event, createUser(t, env.db, "u2", models.RoleStudent))

	approveReq := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticket.TicketNumber,
	}
	if _, err := env.approvals.HandleApprove(context.Background(), approveReq); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	req := &ListRegistrationsRequest{AuthInput: asUser(t, env.auth, organizer), EventID: event.ID}
	resp, err := env.approvals.HandleListRegistrations(context.Background(), req)
	if err != nil {
		t.Fatalf("list registrations failed: %v", err)
	}
	if resp.Body.TotalCount != 2 {
		t.Errorf("expected 2 registrations, got %d", resp.Body.TotalCount)
	}
	if resp.Body.ApprovedCount != 1 || resp.Body.PendingCount != 1 {
		t.Errorf("unexpected counts: approved=%d pending=%d", resp.Body.ApprovedCount, resp.Body.PendingCount)
	}
}

// newTestEnv bundles the handlers the approval and check-in tests share.
type testEnv struct {
	db            *gorm.DB
	auth          *auth.AuthHandler
	registrations *RegistrationHandler
	approvals     *ApprovalHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	authHandler := newTestAuth(db)
	sink := notifier.NewStoreNotifier(db)
	return &testEnv{
		db:            db,
		auth:          authHandler,
		registrations: NewRegistrationHandler(db, sink, authHandler),
		approvals:     NewApprovalHandler(db, sink, authHandler),
	}
}
