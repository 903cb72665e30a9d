package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wetmap/internal/client/models"
	"github.com/dmitrijs2005/wetmap/internal/client/reconcile"
	"github.com/dmitrijs2005/wetmap/internal/common"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// parseFilter accepts "type=WETLAND city=Zagreb" style arguments. A bare
// word is taken as a type when it names one and as a city otherwise.
func parseFilter(args []string) (shared.LocationFilter, error) {
	var f shared.LocationFilter
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			if t, err := shared.ParseLocationType(arg); err == nil {
				f.Type = t
			} else {
				f.City = arg
			}
			continue
		}
		switch strings.ToLower(key) {
		case "type":
			t, err := shared.ParseLocationType(value)
			if err != nil {
				return f, err
			}
			f.Type = t
		case "city":
			f.City = value
		default:
			return f, fmt.Errorf("%w: list [type=WETLAND|DEPOT|OTHER] [city=NAME]", errUsage)
		}
	}
	return f, nil
}

func (a *App) List(ctx context.Context, args []string) error {
	f, err := parseFilter(args)
	if err != nil {
		return err
	}

	locs, err := a.locations.List(ctx, f)
	if err != nil && !errors.Is(err, common.ErrUnauthorized) {
		return err
	}
	a.printLocations(locs)
	if err != nil {
		a.println("Showing local data only: session expired, please log in again.")
		a.setUser(nil)
	}
	return nil
}

func (a *App) Add(ctx context.Context) error {
	var in shared.LocationInput
	var err error

	if in.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.Description, err = getSimpleText(a.reader, "Description", a.out); err != nil {
		return err
	}
	t, err := getSimpleText(a.reader, "Type (WETLAND, DEPOT, OTHER)", a.out)
	if err != nil {
		return err
	}
	if in.Type, err = shared.ParseLocationType(t); err != nil {
		return err
	}
	if in.Latitude, err = a.readFloat("Latitude"); err != nil {
		return err
	}
	if in.Longitude, err = a.readFloat("Longitude"); err != nil {
		return err
	}
	if in.City, err = getSimpleText(a.reader, "City", a.out); err != nil {
		return err
	}

	loc, err := a.locations.Create(ctx, in)
	if err != nil {
		return err
	}
	if models.IsLocalID(loc.ID) {
		a.printf("Saved locally as %s, will sync when online.\n", loc.ID)
		return nil
	}
	a.printf("Created %s.\n", loc.ID)
	return nil
}

func (a *App) readFloat(prompt string) (float64, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", common.ErrValidation, strings.ToLower(prompt))
	}
	return v, nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Location id")
	if err != nil {
		return err
	}

	var p shared.LocationPatch
	if p.Title, err = GetOptionalText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if p.Description, err = GetOptionalText(a.reader, "Description", a.out); err != nil {
		return err
	}
	t, err := GetOptionalText(a.reader, "Type (WETLAND, DEPOT, OTHER)", a.out)
	if err != nil {
		return err
	}
	if t != nil {
		lt, err := shared.ParseLocationType(*t)
		if err != nil {
			return err
		}
		p.Type = &lt
	}
	if p.Latitude, err = GetOptionalFloat(a.reader, "Latitude", a.out); err != nil {
		return err
	}
	if p.Longitude, err = GetOptionalFloat(a.reader, "Longitude", a.out); err != nil {
		return err
	}
	if p.City, err = GetOptionalText(a.reader, "City", a.out); err != nil {
		return err
	}
	if p.Empty() {
		a.println("Nothing changed.")
		return nil
	}

	loc, err := a.locations.Update(ctx, id, p)
	if err != nil {
		return err
	}
	a.printLocations([]shared.Location{loc})
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Location id")
	if err != nil {
		return err
	}
	if err := a.locations.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted %s.\n", id)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	r, err := a.locations.Sync(ctx)
	if err != nil {
		return err
	}
	if r.Status == reconcile.StatusOffline {
		a.println("Server unreachable, nothing was synchronized.")
		return nil
	}
	a.println(formatReport(r))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.locations.Status(ctx)
	if err != nil {
		return err
	}
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	a.printf("Mode: %s\nPending actions: %d\nLocal records: %d\n", mode, st.QueuedActions, st.LocalRecords)
	if st.Running {
		a.println("Synchronization in progress.")
	}
	if !st.Last.StartedAt.IsZero() {
		a.printf("Last sync %s: %s\n", st.Last.StartedAt.Local().Format("2006-01-02 15:04:05"), formatReport(st.Last))
	}
	return nil
}

// idArg takes the id from args or prompts for it.
func (a *App) idArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	id, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: id is required", common.ErrValidation)
	}
	return id, nil
}
