package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchSuccess(t *testing.T) {
	mux := NewMux(nil)
	mux.Handle(KindCheckProviderSession, func(ctx context.Context, req Request) (any, error) {
		return SessionResult{Authenticated: true}, nil
	})

	resp := mux.Dispatch(context.Background(), Request{Kind: KindCheckProviderSession})
	require.True(t, resp.OK)
	require.Nil(t, resp.Error)
	assert.Equal(t, SessionResult{Authenticated: true}, resp.Data)
}

func TestDispatchUnknownKind(t *testing.T) {
	mux := NewMux(nil)

	resp := mux.Dispatch(context.Background(), Request{Kind: Kind("MAKE_COFFEE")})
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnsupportedAction, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "MAKE_COFFEE")
}

func TestDispatchTypedError(t *testing.T) {
	mux := NewMux(nil)
	mux.Handle(KindDownloadAndExtractBill, func(ctx context.Context, req Request) (any, error) {
		return nil, NewError(CodeArtifactUnresolved, "no download URL discovered")
	})

	resp := mux.Dispatch(context.Background(), Request{Kind: KindDownloadAndExtractBill})
	require.False(t, resp.OK)
	assert.Equal(t, CodeArtifactUnresolved, resp.Error.Code)
}

func TestDispatchWrapsPlainError(t *testing.T) {
	mux := NewMux(nil)
	mux.Handle(KindNavigateBilling, func(ctx context.Context, req Request) (any, error) {
		return nil, errors.New("boom")
	})

	resp := mux.Dispatch(context.Background(), Request{Kind: KindNavigateBilling})
	require.False(t, resp.OK)
	assert.Equal(t, CodeActionFailed, resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)
}

func TestDispatchRecoversPanic(t *testing.T) {
	mux := NewMux(nil)
	mux.Handle(KindAuthProvider, func(ctx context.Context, req Request) (any, error) {
		panic("detached element")
	})

	resp := mux.Dispatch(context.Background(), Request{Kind: KindAuthProvider})
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeActionFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "detached element")
}

func TestAsErrorUnwrapsTypedFromChain(t *testing.T) {
	typed := NewError(CodeElementNotFound, "password field never appeared")
	wrapped := errors.Join(errors.New("context"), typed)

	got := AsError(wrapped)
	assert.Equal(t, CodeElementNotFound, got.Code)
}

func TestResponderSendsExactlyOnce(t *testing.T) {
	var delivered []Response
	responder := NewResponder(func(resp Response) {
		delivered = append(delivered, resp)
	})

	responder.Send(Succeed("first"))
	responder.Send(Fail(NewError(CodeActionFailed, "second")))

	require.Len(t, delivered, 1)
	assert.True(t, delivered[0].OK)
	assert.Equal(t, "first", delivered[0].Data)
}
