package authweb

import (
	"fmt"
	"math"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RefreshHeader is the response header used for delayed navigation.
const RefreshHeader = "Refresh"

// pageOutcome collects the notifications and navigation a form controller
// produced while handling one request.
type pageOutcome struct {
	notes *NotificationBuffer
	nav   *NavigationRecorder
}

func newPageOutcome() *pageOutcome {
	return &pageOutcome{
		notes: &NotificationBuffer{},
		nav:   &NavigationRecorder{},
	}
}

// respond turns the outcome into a response: an immediate navigation
// becomes a redirect carrying the last notification as a flash message,
// a delayed one becomes a Refresh header on the rendered page.
func (a *AuthController) respond(ctx router.Context, view string, data router.ViewContext, out *pageOutcome) error {
	if nav, ok := out.nav.Pending(); ok {
		if nav.Immediate() {
			return a.redirectWithFlash(ctx, nav.Path, out.notes)
		}

		seconds := refreshSeconds(nav.Delay)
		ctx.SetHeader(RefreshHeader, fmt.Sprintf("%d; url=%s", seconds, nav.Path))
		data["redirect"] = router.ViewContext{
			"url":     nav.Path,
			"seconds": seconds,
		}
	}

	data["notifications"] = out.notes.Items()
	return a.render(ctx, view, data)
}

func (a *AuthController) redirectWithFlash(ctx router.Context, path string, notes *NotificationBuffer) error {
	if n, ok := notes.Last(NotificationSuccess); ok {
		return flash.WithSuccess(ctx, router.ViewContext{
			"system_message": n.Message,
		}).Redirect(path, router.StatusSeeOther)
	}

	if n, ok := notes.Last(NotificationError); ok {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": n.Message,
		}).Redirect(path, router.StatusSeeOther)
	}

	return ctx.Redirect(path, router.StatusSeeOther)
}

func (a *AuthController) render(ctx router.Context, view string, data router.ViewContext) error {
	return ctx.Render(view, MergeTemplateData(ctx, data))
}

func (a *AuthController) debugPayload(label string, payload any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug(label, "payload", print.MaybePrettyJSON(payload))
}

func refreshSeconds(delay time.Duration) int {
	return int(math.Ceil(delay.Seconds()))
}

func defaultErrHandler(logger Logger) router.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c router.Context, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		logger.Error(
			"auth page error",
			"error", richErr.Message,
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		code := richErr.Code
		if code < 400 {
			code = router.StatusInternalServerError
		}

		return c.Status(code).Render("errors/500", router.ViewContext{
			"message": richErr.Message,
			"code":    code,
		})
	}
}
