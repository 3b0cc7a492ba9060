package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/metadata"
)

var ErrReadOnly = errors.New("service has no transaction signer")

// Action is a write on an existing challenge.
type Action string

const (
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionComplete Action = "complete"
	ActionRefund   Action = "refund"
	ActionCreate   Action = "create"
)

// ParseAction accepts the actions that can be prepared for an id.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionEdit, ActionDelete, ActionComplete, ActionRefund, ActionCreate:
		return a, true
	}
	return "", false
}

func (a Action) method() string {
	switch a {
	case ActionEdit:
		return challenge.MethodEdit
	case ActionDelete:
		return challenge.MethodDelete
	case ActionComplete:
		return challenge.MethodComplete
	case ActionRefund:
		return challenge.MethodRefund
	default:
		return challenge.MethodCreate
	}
}

func (a Action) kind() bus.Kind {
	switch a {
	case ActionEdit:
		return bus.Edited
	case ActionDelete:
		return bus.Deleted
	case ActionComplete:
		return bus.Completed
	case ActionRefund:
		return bus.Refunded
	default:
		return bus.Created
	}
}

// PrepareCreate validates form, remembers its metadata for creator and
// returns the plan to sign. Nothing is queued unless the call packs. The
// pending entry stays queued even if the transaction is never sent; it
// simply never matches.
func (s *Service) PrepareCreate(ctx context.Context, creator string, form challenge.CreateForm) (challenge.CreatePlan, error) {
	form.Title = s.clean(form.Title)
	form.Description = s.clean(form.Description)
	form.Nickname = s.clean(form.Nickname)
	form.Requirements = s.clean(form.Requirements)

	plan, err := challenge.PlanCreate(form, s.now())
	if err != nil {
		return challenge.CreatePlan{}, err
	}
	if plan.Call, err = s.pack(plan.Call); err != nil {
		return challenge.CreatePlan{}, err
	}
	entry := metadata.PendingEntry{
		Metadata:        plan.Metadata,
		Title:           plan.Title,
		Description:     plan.Description,
		CreatorAddress:  creator,
		Deadline:        plan.Deadline,
		MaxParticipants: plan.MaxParticipants,
	}
	if err := s.meta.AddPending(ctx, entry); err != nil {
		s.log.Warn("queue pending metadata", zap.String("creator", creator), zap.Error(err))
	}
	return plan, nil
}

// Prepare validates an action on id and returns the call to sign.
func (s *Service) Prepare(ctx context.Context, action Action, id uint64, edit challenge.EditForm) (challenge.Call, error) {
	call, err := s.plan(ctx, action, id, edit)
	if err != nil {
		return challenge.Call{}, err
	}
	return s.pack(call)
}

func (s *Service) pack(call challenge.Call) (challenge.Call, error) {
	if s.encode == nil {
		return call, nil
	}
	input, err := s.encode(call)
	if err != nil {
		return challenge.Call{}, fmt.Errorf("encode %s: %w", call.Method, err)
	}
	call.Input = input
	return call, nil
}

func (s *Service) plan(ctx context.Context, action Action, id uint64, edit challenge.EditForm) (challenge.Call, error) {
	switch action {
	case ActionEdit:
		edit.Title = s.clean(edit.Title)
		edit.Description = s.clean(edit.Description)
		return challenge.PlanEdit(id, edit, s.now())
	case ActionDelete:
		return challenge.PlanDelete(id)
	case ActionComplete:
		rec, err := s.Record(ctx, id)
		if err != nil {
			return challenge.Call{}, err
		}
		if !challenge.IsActive(rec, s.now().Unix()) {
			return challenge.Call{}, &challenge.ValidationError{Field: "id", Message: "challenge is no longer accepting completions"}
		}
		return challenge.PlanComplete(id)
	case ActionRefund:
		rec, err := s.Record(ctx, id)
		if err != nil {
			return challenge.Call{}, err
		}
		if !challenge.IsRefundable(rec, s.now().Unix()) {
			return challenge.Call{}, &challenge.ValidationError{Field: "id", Message: "challenge is not refundable yet"}
		}
		return challenge.PlanRefund(id)
	}
	return challenge.Call{}, fmt.Errorf("unsupported action %q", action)
}

// Create signs and sends a new challenge as creator.
func (s *Service) Create(ctx context.Context, creator string, form challenge.CreateForm) (challenge.Receipt, error) {
	if s.writer == nil {
		return challenge.Receipt{}, ErrReadOnly
	}
	plan, err := s.PrepareCreate(ctx, creator, form)
	if err != nil {
		return challenge.Receipt{}, err
	}
	return s.send(ctx, ActionCreate, 0, plan.Call)
}

func (s *Service) Edit(ctx context.Context, id uint64, form challenge.EditForm) (challenge.Receipt, error) {
	return s.act(ctx, ActionEdit, id, form)
}

func (s *Service) Delete(ctx context.Context, id uint64) (challenge.Receipt, error) {
	return s.act(ctx, ActionDelete, id, challenge.EditForm{})
}

func (s *Service) Complete(ctx context.Context, id uint64) (challenge.Receipt, error) {
	return s.act(ctx, ActionComplete, id, challenge.EditForm{})
}

func (s *Service) Refund(ctx context.Context, id uint64) (challenge.Receipt, error) {
	return s.act(ctx, ActionRefund, id, challenge.EditForm{})
}

func (s *Service) act(ctx context.Context, action Action, id uint64, form challenge.EditForm) (challenge.Receipt, error) {
	if s.writer == nil {
		return challenge.Receipt{}, ErrReadOnly
	}
	call, err := s.Prepare(ctx, action, id, form)
	if err != nil {
		return challenge.Receipt{}, err
	}
	return s.send(ctx, action, id, call)
}

func (s *Service) send(ctx context.Context, action Action, id uint64, call challenge.Call) (challenge.Receipt, error) {
	hash, err := s.writer.Submit(ctx, call)
	if err != nil {
		return challenge.Receipt{}, err
	}
	return s.settle(ctx, action, id, hash)
}

// Confirm checks that hash is a call of action on id sent by from, waits
// for it and then runs the follow-up. For creates the id comes from the
// receipt.
func (s *Service) Confirm(ctx context.Context, action Action, id uint64, hash, from string) (challenge.Receipt, error) {
	if s.writer == nil {
		return challenge.Receipt{}, ErrReadOnly
	}
	if err := s.verify(ctx, action, id, hash, from); err != nil {
		return challenge.Receipt{}, err
	}
	return s.settle(ctx, action, id, hash)
}

func (s *Service) verify(ctx context.Context, action Action, id uint64, hash, from string) error {
	if strings.TrimSpace(from) == "" {
		return &challenge.ValidationError{Field: "txHash", Message: "sender is unknown"}
	}
	tx, err := s.writer.Transaction(ctx, hash)
	if err != nil {
		return err
	}
	switch {
	case tx.Method != action.method():
		return &challenge.ValidationError{Field: "txHash", Message: fmt.Sprintf("transaction does not call %s", action.method())}
	case action != ActionCreate && tx.ChallengeID != id:
		return &challenge.ValidationError{Field: "txHash", Message: fmt.Sprintf("transaction targets challenge %d", tx.ChallengeID)}
	case !strings.EqualFold(tx.From, from):
		return &challenge.ValidationError{Field: "txHash", Message: "transaction was sent by another address"}
	}
	return nil
}

// settle waits for hash and runs the follow-up for action: delete
// cleanup and a bus event. A delete only cleans up once the contract
// stops returning the challenge.
func (s *Service) settle(ctx context.Context, action Action, id uint64, hash string) (challenge.Receipt, error) {
	rcpt, err := s.writer.Await(ctx, hash)
	if err != nil {
		return rcpt, err
	}
	if action == ActionCreate {
		id = rcpt.ChallengeID
	} else {
		rcpt.ChallengeID = id
	}
	if id == 0 {
		s.log.Warn("mined write carried no challenge id", zap.String("tx", hash), zap.String("action", string(action)))
		return rcpt, nil
	}

	if action == ActionDelete {
		raw, err := s.reader.Get(ctx, id)
		if err != nil {
			return rcpt, fmt.Errorf("get challenge %d: %w", id, err)
		}
		if _, live := challenge.ValidRecord(raw); live {
			return rcpt, &challenge.ValidationError{Field: "txHash", Message: fmt.Sprintf("challenge %d still exists", id)}
		}
		if err := s.meta.Forget(ctx, id); err != nil {
			s.log.Warn("forget metadata", zap.Uint64("id", id), zap.Error(err))
		}
	}
	if err := s.bus.Publish(ctx, action.kind(), id); err != nil {
		s.log.Warn("publish", zap.Uint64("id", id), zap.Error(err))
	}
	return rcpt, nil
}
