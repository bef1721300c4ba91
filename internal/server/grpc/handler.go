package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(ctx, map[string]any{"status": "OK"})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.users.Login(ctx, stringField(req, "login"), stringField(req, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, map[string]any{
		"user":         publicUser(sess.User),
		"accessToken":  sess.Tokens.AccessToken,
		"refreshToken": sess.Tokens.RefreshToken,
	})
}

func (s *GRPCServer) RefreshSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokens, err := s.users.RefreshSession(ctx, stringField(req, "refreshToken"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.reply(ctx, map[string]any{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.users.Logout(ctx, userIDFrom(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string]any{})
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	err := s.users.ChangePassword(ctx, userIDFrom(ctx), stringField(req, "oldPassword"), stringField(req, "newPassword"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string]any{})
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.users.CurrentUser(ctx, userIDFrom(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string]any{"user": publicUser(user)})
}

func (s *GRPCServer) reply(ctx context.Context, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.toStatus(ctx, common.Wrap("grpc.reply", common.ErrorInternal, "", err))
	}
	return out, nil
}

// toStatus maps an error kind onto a gRPC status. Internal causes are
// logged and replaced with the generic message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var code codes.Code
	switch common.KindOf(err) {
	case common.ErrorValidation:
		code = codes.InvalidArgument
	case common.ErrorConflict:
		code = codes.AlreadyExists
	case common.ErrorUnauthorized:
		code = codes.Unauthenticated
	case common.ErrorNotFound:
		code = codes.NotFound
	default:
		code = codes.Internal
		logging.LogError(ctx, s.logger, "rpc failed", err)
	}
	return status.Error(code, common.MessageOf(err))
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func publicUser(u *models.PublicUser) map[string]any {
	return map[string]any{
		"_id":        u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"fullname":   u.Fullname,
		"avatar":     u.Avatar,
		"coverImage": u.CoverImage,
		"createdAt":  u.CreatedAt.Format(time.RFC3339),
		"updatedAt":  u.UpdatedAt.Format(time.RFC3339),
	}
}
