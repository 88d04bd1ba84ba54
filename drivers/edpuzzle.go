package drivers

import (
	"context"

	"github.com/eduassist/portalsync/credentials"
	interrors "github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/sessions"
)

var _ sessions.Driver = (*EdpuzzleDriver)(nil)

// EdpuzzleDriver mirrors McGrawHillDriver: Edpuzzle sessions only exist
// as Clever subsessions.
type EdpuzzleDriver struct{}

func NewEdpuzzleDriver() *EdpuzzleDriver { return &EdpuzzleDriver{} }

func (d *EdpuzzleDriver) Platform() platform.Platform { return platform.Edpuzzle }

func (d *EdpuzzleDriver) Login(context.Context, credentials.Credential, credentials.Secret) (*sessions.Session, error) {
	return nil, interrors.Wrapf(interrors.ErrSessionDependency, "[EdpuzzleDriver.Login] only reachable through a %s session", platform.Clever)
}
