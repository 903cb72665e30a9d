package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/reconcile"
	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

func (a *App) printLocations(locs []shared.Location) {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	if len(locs) == 0 {
		fmt.Fprintln(a.out, "No locations.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tCITY\tLAT\tLON\t")
	for _, l := range locs {
		id := l.ID
		if models.IsLocalID(id) {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.5f\t%.5f\t\n", id, l.Type, l.Title, l.City, l.Latitude, l.Longitude)
	}
	_ = tw.Flush()
}

func formatReport(r reconcile.Report) string {
	switch r.Status {
	case reconcile.StatusIdle:
		return "Nothing to synchronize."
	case reconcile.StatusSkipped:
		return "Synchronization already in progress."
	case reconcile.StatusOffline:
		return "Sync postponed: server unreachable."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sync %s: %d replayed, %d created", r.Status, r.Replayed, r.Created)
	if r.Dropped > 0 {
		fmt.Fprintf(&b, ", %d dropped", r.Dropped)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}
	if r.Remaining > 0 {
		fmt.Fprintf(&b, ", %d pending", r.Remaining)
	}
	return b.String()
}

// describe turns service errors into messages for the field user.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return "not signed in or session expired, please log in"
	case errors.Is(err, common.ErrForbidden):
		return "you are not allowed to do that"
	case errors.Is(err, common.ErrUnavailable):
		return "server unreachable, try again when online"
	case errors.Is(err, common.ErrStorage):
		return "could not save on this device: " + err.Error()
	default:
		return err.Error()
	}
}
