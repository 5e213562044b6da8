package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/usecase"
)

// GetMarketView focuses the market context on {"symbol"} when it differs
// from the current one and returns the market snapshot.
func (s *Server) GetMarketView(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if provider := stringField(in, "provider"); !s.validationService.IsSupportedProvider(provider) {
		return nil, toStatus(fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider))
	}

	symbol, err := s.validationService.ParseSymbol(stringField(in, "symbol"))
	if err != nil {
		return nil, toStatus(err)
	}

	if current := s.market.Snapshot(); current.Symbol != symbol.Pair() {
		if err := s.market.Switch(ctx, symbol); err != nil {
			return nil, toStatus(err)
		}
	}

	return toStruct(s.market.Snapshot())
}

// GetFavorites loads the favorites of {"userId"} when they are not the
// active ones and returns the projected coin list.
func (s *Server) GetFavorites(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(in, "userId")
	if err := s.validationService.ValidateUserID(userID); err != nil {
		return nil, toStatus(err)
	}

	if current := s.favorites.Snapshot(); current.UserID != userID {
		if err := s.favorites.LoadUser(ctx, userID); err != nil {
			return nil, toStatus(err)
		}
	}

	return toStruct(s.favorites.Snapshot())
}

type statusView struct {
	Context    string   `json:"context"`
	State      string   `json:"state"`
	ConnID     string   `json:"connId,omitempty"`
	Streams    []string `json:"streams"`
	LastError  string   `json:"lastError,omitempty"`
	Reconnects int64    `json:"reconnects"`
}

type statusResponse struct {
	Contexts []statusView `json:"contexts"`
}

// Status reports connection state of {"context"}, or of every context when
// it is empty.
func (s *Server) Status(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var statuses []usecase.Status

	switch name := stringField(in, "context"); name {
	case "":
		statuses = []usecase.Status{s.market.Status(), s.favorites.Status()}
	case usecase.MarketContext:
		statuses = []usecase.Status{s.market.Status()}
	case usecase.FavoritesContext:
		statuses = []usecase.Status{s.favorites.Status()}
	default:
		return nil, toStatus(fmt.Errorf("%w: %s", ErrUnknownContext, name))
	}

	resp := statusResponse{Contexts: make([]statusView, 0, len(statuses))}
	for _, st := range statuses {
		view := statusView{
			Context:    st.Context,
			State:      st.State.String(),
			ConnID:     st.ConnID,
			Streams:    st.Streams,
			Reconnects: st.Reconnects,
		}
		if view.Streams == nil {
			view.Streams = []string{}
		}
		if st.LastError != nil {
			view.LastError = st.LastError.Error()
		}
		resp.Contexts = append(resp.Contexts, view)
	}
	return toStruct(resp)
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	var (
		baselineErr  *domain.BaselineFetchError
		transportErr *domain.TransportError
	)

	switch {
	case errors.Is(err, ErrInvalidSymbol),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrUnknownContext),
		errors.Is(err, ErrUnsupportedProvider):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, usecase.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConnectionClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &baselineErr), errors.As(err, &transportErr):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
