// Package browser opens rule reference pages in the user's web browser.
//
// Launching is delegated to github.com/pkg/browser. Only absolute http and
// https URLs are accepted, so file:// and javascript: URLs never reach the
// launcher.
//
//	if err := browser.Open(rule.Reference, browser.TargetDefault); err != nil {
//	    cliout.Warning("%v", err)
//	}
//
// TargetNone validates the URL without launching anything, for headless
// sessions.
package browser
