package drivers_test

import (
	"context"
	"testing"

	"github.com/eduassist/portalsync/browser/browserfakes"
	"github.com/eduassist/portalsync/credentials"
	"github.com/eduassist/portalsync/drivers"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testLoginURL = "https://clever.com/in/edu-login"
	testAppsURL  = "https://clever.com/applications"
	testCred     = "student@school.test"
)

const loginFormHTML = `
<html><body>
  <form>
    <input name="username" type="text" />
    <input name="password" type="password" />
    <button type="submit">Log In</button>
  </form>
</body></html>`

const appsHTML = `
<html><body>
  <div class="app-card">
    <h3>McGraw Hill ConnectED</h3>
    <p>Math curriculum</p>
    <a href="https://clever.com/launch/mcgraw"><img src="/icons/mcgraw.png"/></a>
  </div>
  <div class="app-card">
    <h3>Edpuzzle</h3>
    <a href="https://clever.com/launch/edpuzzle"></a>
  </div>
  <div class="app-card"><span>no heading here</span></div>
</body></html>`

func cleverFixture() (*drivers.CleverDriver, *browserfakes.FakeContext, *browserfakes.FakeLauncher) {
	page := browserfakes.NewFakeContext()
	page.SetPage(testLoginURL, loginFormHTML)
	page.SetPage(testAppsURL, appsHTML)
	page.ClickNavigates[`button[type="submit"]`] = "https://clever.com/in/portal"

	launcher := browserfakes.NewFakeLauncher(page)
	d := drivers.NewCleverDriver(launcher, drivers.CleverConfig{
		LoginURL: testLoginURL,
		AppsURL:  testAppsURL,
	}, zerolog.Nop())
	return d, page, launcher
}

func cleverCredential() (credentials.Credential, credentials.Secret) {
	return credentials.Credential{
		Platform:   platform.Clever,
		Identifier: testCred,
		SecretRef:  "vault://clever",
	}, "hunter2"
}

func TestCleverLogin(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		d, page, _ := cleverFixture()
		cred, secret := cleverCredential()

		sess, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)
		require.Equal(t, platform.Clever, sess.Platform)
		require.Same(t, page, sess.Browser)

		require.Equal(t, testCred, page.Filled[`input[name="username"]`])
		require.Equal(t, "hunter2", page.Filled[`input[name="password"]`])
		require.Contains(t, page.CurrentURL(), "portal")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.ClickNavigates[`button[type="submit"]`] = "https://sso.district.example/denied"
		page.SetPage("https://sso.district.example/denied",
			`<html><body><div class="alert-error">Invalid username or password</div></body></html>`)

		cred, secret := cleverCredential()
		_, err := d.Login(context.Background(), cred, secret)
		require.ErrorIs(t, err, errors.ErrAuthentication)
		require.Contains(t, err.Error(), "Invalid username or password")
		require.True(t, page.IsClosed)
	})

	t.Run("login form markup changed", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.SetPage(testLoginURL, `<html><body><div>maintenance</div></body></html>`)

		cred, secret := cleverCredential()
		_, err := d.Login(context.Background(), cred, secret)
		require.ErrorIs(t, err, errors.ErrExtraction)
		require.NotErrorIs(t, err, errors.ErrAuthentication)
		require.True(t, page.IsClosed)
	})

	t.Run("uncertain landing treated as logged in", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.ClickNavigates[`button[type="submit"]`] = "https://sso.district.example/interstitial"
		page.SetPage("https://sso.district.example/interstitial",
			`<html><body><p>One moment...</p></body></html>`)

		cred, secret := cleverCredential()
		sess, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)
		require.NotNil(t, sess.Browser)
	})
}

func TestCleverApplications(t *testing.T) {
	d, _, _ := cleverFixture()
	cred, secret := cleverCredential()

	sess, err := d.Login(context.Background(), cred, secret)
	require.NoError(t, err)

	apps, err := d.Applications(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, apps, 2, "tile without a name is skipped")

	require.Equal(t, "McGraw Hill ConnectED", apps[0].Name)
	require.Equal(t, "Math curriculum", apps[0].Description)
	require.Equal(t, "https://clever.com/launch/mcgraw", apps[0].Link)
	require.Equal(t, "/icons/mcgraw.png", apps[0].Icon)
	require.Equal(t, "Edpuzzle", apps[1].Name)
}

func TestCleverApplicationsTileFallback(t *testing.T) {
	d, page, _ := cleverFixture()
	page.SetPage(testAppsURL, `
<html><body>
  <div class="tile"><a href="https://clever.com/launch/edpuzzle" title="Edpuzzle">Edpuzzle</a></div>
</body></html>`)

	cred, secret := cleverCredential()
	sess, err := d.Login(context.Background(), cred, secret)
	require.NoError(t, err)

	apps, err := d.Applications(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, "Edpuzzle", apps[0].Name)
}

func TestCleverDeriveSubsession(t *testing.T) {
	t.Run("mcgraw hill hand-off", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.Redirects["https://clever.com/launch/mcgraw"] = "https://connected.mcgraw-hill.com/home"
		page.SetPage("https://connected.mcgraw-hill.com/home", `<html><body>welcome</body></html>`)

		cred, secret := cleverCredential()
		root, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)

		sub, err := d.DeriveSubsession(context.Background(), root, platform.McGrawHill)
		require.NoError(t, err)
		require.Equal(t, platform.McGrawHill, sub.Platform)
		require.NotSame(t, root.Browser, sub.Browser)
		require.Len(t, page.Derived, 1, "subsession runs in a page derived from the root")
	})

	t.Run("app tile missing", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.SetPage(testAppsURL, `<html><body></body></html>`)

		cred, secret := cleverCredential()
		root, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)

		_, err = d.DeriveSubsession(context.Background(), root, platform.Edpuzzle)
		require.ErrorIs(t, err, errors.ErrExtraction)
	})

	t.Run("landing not recognized", func(t *testing.T) {
		d, page, _ := cleverFixture()
		page.Redirects["https://clever.com/launch/mcgraw"] = "https://login.microsoftonline.example/oops"
		page.SetPage("https://login.microsoftonline.example/oops", `<html><body>sign in</body></html>`)

		cred, secret := cleverCredential()
		root, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)

		_, err = d.DeriveSubsession(context.Background(), root, platform.McGrawHill)
		require.ErrorIs(t, err, errors.ErrExtraction)
	})

	t.Run("platform without clever tile", func(t *testing.T) {
		d, _, _ := cleverFixture()
		cred, secret := cleverCredential()
		root, err := d.Login(context.Background(), cred, secret)
		require.NoError(t, err)

		_, err = d.DeriveSubsession(context.Background(), root, platform.GoogleClassroom)
		require.Error(t, err)
	})
}

func TestDependentDriversRefuseDirectLogin(t *testing.T) {
	cred, secret := cleverCredential()

	_, err := drivers.NewMcGrawHillDriver().Login(context.Background(), cred, secret)
	require.ErrorIs(t, err, errors.ErrSessionDependency)

	_, err = drivers.NewEdpuzzleDriver().Login(context.Background(), cred, secret)
	require.ErrorIs(t, err, errors.ErrSessionDependency)
}
