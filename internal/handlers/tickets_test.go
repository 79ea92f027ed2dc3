package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/uniplus/uniplus-api/internal/models"
)

func TestHandleMyTickets(t *testing.T) {
	env := newTestEnv(t)
	handler := NewTicketHandler(env.db, env.auth, time.UTC)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	alice := createUser(t, env.db, "alice", models.RoleStudent)
	bob := createUser(t, env.db, "bob", models.RoleStudent)

	event := createWorkshop(t, env.db, organizer, nil)
	other := createWorkshop(t, env.db, organizer, nil)

	ticket := registerAttendee(t, env, event, alice)
	registerAttendee(t, env, other, alice)
	registerAttendee(t, env, event, bob)

	approveReq := &ApprovalRequest{
		AuthInput: asUser(t, env.auth, organizer),
		EventID:   event.ID,
		TicketID:  ticket.TicketNumber,
	}
	if _, err := env.approvals.HandleApprove(context.Background(), approveReq); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	req := &MyTicketsRequest{AuthInput: asUser(t, env.auth, alice)}
	resp, err := handler.HandleMyTickets(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleMyTickets returned error: %v", err)
	}
	if resp.Body.TotalCount != 2 {
		t.Errorf("expected alice's 2 tickets, got %d", resp.Body.TotalCount)
	}
	if resp.Body.ApprovedCount != 1 || resp.Body.PendingCount != 1 {
		t.Errorf("unexpected counts: approved=%d pending=%d", resp.Body.ApprovedCount, resp.Body.PendingCount)
	}

	req.Status = "approved"
	resp, err = handler.HandleMyTickets(context.Background(), req)
	if err != nil {
		t.Fatalf("filtered listing failed: %v", err)
	}
	if resp.Body.TotalCount != 1 || resp.Body.Tickets[0].TicketID != ticket.ID {
		t.Errorf("status filter returned wrong tickets: %+v", resp.Body.Tickets)
	}
	if resp.Body.Tickets[0].Date != "2025-11-05" {
		t.Errorf("expected first snapshot date as summary date, got %s", resp.Body.Tickets[0].Date)
	}
}

func TestHandleTicketDetail_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	handler := NewTicketHandler(env.db, env.auth, time.UTC)
	organizer := createUser(t, env.db, "org", models.RoleOrganizer)
	alice := createUser(t, env.db, "alice", models.RoleStudent)
	bob := createUser(t, env.db, "bob", models.RoleStudent)

	event := createWorkshop(t, env.db, organizer, nil)
	ticket := registerAttendee(t, env, event, alice)

	req := &TicketDetailRequest{AuthInput: asUser(t, env.auth, alice), TicketID: ticket.ID}
	resp, err := handler.HandleTicketDetail(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleTicketDetail returned error: %v", err)
	}
	if resp.Body.Organizer != "org" {
		t.Errorf("expected organizer username, got %q", resp.Body.Organizer)
	}
	if resp.Body.UserEmail != alice.Email {
		t.Errorf("expected owner email, got %q", resp.Body.UserEmail)
	}
	if len(resp.Body.EventDates) != 2 {
		t.Errorf("expected snapshot in detail, got %d dates", len(resp.Body.EventDates))
	}

	// Another student cannot read it.
	req.AuthInput = asUser(t, env.auth, bob)
	_, err = handler.HandleTicketDetail(context.Background(), req)
	assertStatus(t, err, 404)
}
