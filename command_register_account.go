package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterAccountMessage struct {
	Email      string         `json:"email"`
	Password   string         `json:"password"`
	Profile    map[string]any `json:"profile"`
	OnResponse func(account *Account)
}

func (e RegisterAccountMessage) Type() string { return "identity.register" }

// RegisterAccountHandler runs registrations coming from a message bus
type RegisterAccountHandler struct {
	manager *Manager
}

func NewRegisterAccountHandler(manager *Manager) *RegisterAccountHandler {
	return &RegisterAccountHandler{manager: manager}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		).WithTextCode(TextCodeOperationCancelled)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if h.manager == nil {
		return goerrors.New("register handler has no identity manager", goerrors.CategoryInternal)
	}

	account, err := h.manager.Register(ctx, event.Email, event.Password, Profile(event.Profile))
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
