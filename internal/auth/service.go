package auth

import (
	"context"

	"github.com/odyssey-erp/odyssey-records/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	directory *Directory
}

// NewService constructs a new Service.
func NewService(directory *Directory) *Service {
	return &Service{directory: directory}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.directory == nil || !s.directory.Verify(username, password) {
		return shared.ErrInvalidCredentials
	}
	return nil
}
