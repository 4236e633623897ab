package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// EmailVerificationRequestMessage asks for an email token. OnResponse
// receives the token so the caller can deliver it.
type EmailVerificationRequestMessage struct {
	Email      string `json:"email"`
	OnResponse func(token string)
}

func (e EmailVerificationRequestMessage) Type() string { return "identity.email.request_verification" }

type EmailVerificationConfirmMessage struct {
	Token      string `json:"token"`
	OnResponse func(account *Account)
}

func (e EmailVerificationConfirmMessage) Type() string { return "identity.email.confirm_verification" }

type EmailVerificationRequestHandler struct {
	manager *Manager
}

func NewEmailVerificationRequestHandler(manager *Manager) *EmailVerificationRequestHandler {
	return &EmailVerificationRequestHandler{manager: manager}
}

func (h *EmailVerificationRequestHandler) Execute(ctx context.Context, event EmailVerificationRequestMessage) error {
	if err := cancelled(ctx, "context cancelled during email verification request"); err != nil {
		return err
	}

	if h.manager == nil {
		return goerrors.New("verification handler has no identity manager", goerrors.CategoryInternal)
	}

	token, err := h.manager.RequestEmailVerification(ctx, event.Email)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(token)
	}
	return nil
}

type EmailVerificationConfirmHandler struct {
	manager *Manager
}

func NewEmailVerificationConfirmHandler(manager *Manager) *EmailVerificationConfirmHandler {
	return &EmailVerificationConfirmHandler{manager: manager}
}

func (h *EmailVerificationConfirmHandler) Execute(ctx context.Context, event EmailVerificationConfirmMessage) error {
	if err := cancelled(ctx, "context cancelled during email verification"); err != nil {
		return err
	}

	if h.manager == nil {
		return goerrors.New("verification handler has no identity manager", goerrors.CategoryInternal)
	}

	account, err := h.manager.ConfirmEmailVerification(ctx, event.Token)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}
	return nil
}

func cancelled(ctx context.Context, message string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, message).
			WithTextCode(TextCodeOperationCancelled)
	default:
		return nil
	}
}
