package drivers

import (
	"context"

	"github.com/eduassist/portalsync/credentials"
	interrors "github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/sessions"
)

var _ sessions.Driver = (*McGrawHillDriver)(nil)

// McGrawHillDriver has no credential login of its own: McGraw Hill is
// only reachable through a Clever application launch, so its sessions
// are produced by CleverDriver.DeriveSubsession.
type McGrawHillDriver struct{}

func NewMcGrawHillDriver() *McGrawHillDriver { return &McGrawHillDriver{} }

func (d *McGrawHillDriver) Platform() platform.Platform { return platform.McGrawHill }

func (d *McGrawHillDriver) Login(context.Context, credentials.Credential, credentials.Secret) (*sessions.Session, error) {
	return nil, interrors.Wrapf(interrors.ErrSessionDependency, "[McGrawHillDriver.Login] only reachable through a %s session", platform.Clever)
}
