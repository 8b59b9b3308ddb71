package commands

import (
	"context"
	"fmt"
	"io"

	"taskify/internal/app"
	"taskify/internal/linkserver"
)

// linkTarget decides where emailed links of kind point. With wait set a
// local server is started to catch the link; the caller must Close it.
func linkTarget(a *app.App, wait bool, kind linkserver.Kind) (*linkserver.Server, string, error) {
	if !wait {
		return nil, linkserver.RedirectURL(a.Config.LinkBaseURL, kind), nil
	}
	srv := linkserver.New(a.Log)
	if err := srv.Start(); err != nil {
		return nil, "", fmt.Errorf("could not bind to local port for the link: %w", err)
	}
	return srv, linkserver.RedirectURL(srv.BaseURL(), kind), nil
}

// awaitLink blocks until srv catches a link of kind.
func awaitLink(ctx context.Context, srv *linkserver.Server, kind linkserver.Kind, errOut io.Writer) (linkserver.Link, error) {
	fmt.Fprintln(errOut, "waiting for you to open the emailed link...")
	link, err := srv.Wait(ctx, linkserver.DefaultWait)
	if err != nil {
		return linkserver.Link{}, err
	}
	if link.Kind != kind {
		return linkserver.Link{}, fmt.Errorf("expected a %s link, got %s", kind, link.Kind)
	}
	return link, nil
}
