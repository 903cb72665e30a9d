package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

func (a *App) Users(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tROLE\tADMIN")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Name, u.Role, u.IsAdmin)
	}
	return tw.Flush()
}

func (a *App) AddUser(ctx context.Context) error {
	var in shared.UserInput
	var err error

	if in.Name, err = getSimpleText(a.reader, "Name", a.out); err != nil {
		return err
	}
	if in.Username, err = getSimpleText(a.reader, "Username", a.out); err != nil {
		return err
	}
	if in.Password, err = getPassword(a.out); err != nil {
		return err
	}
	role, err := getSimpleText(a.reader, "Role (FEDERATION_OFFICER, STATE_OFFICER, AUTHORIZED_PERSON)", a.out)
	if err != nil {
		return err
	}
	if in.Role, err = shared.ParseRole(role); err != nil {
		return err
	}
	admin, err := getSimpleText(a.reader, "Administrator? (y/N)", a.out)
	if err != nil {
		return err
	}
	in.IsAdmin = yes(admin)

	u, err := a.users.Create(ctx, in)
	if err != nil {
		return err
	}
	a.printf("Created user %s (%s).\n", u.Username, u.ID)
	return nil
}

func (a *App) EditUser(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "User id")
	if err != nil {
		return err
	}

	var p shared.UserPatch
	if p.Name, err = GetOptionalText(a.reader, "Name", a.out); err != nil {
		return err
	}
	if p.Username, err = GetOptionalText(a.reader, "Username", a.out); err != nil {
		return err
	}
	role, err := GetOptionalText(a.reader, "Role", a.out)
	if err != nil {
		return err
	}
	if role != nil {
		r, err := shared.ParseRole(*role)
		if err != nil {
			return err
		}
		p.Role = &r
	}
	admin, err := GetOptionalText(a.reader, "Administrator? (y/n)", a.out)
	if err != nil {
		return err
	}
	if admin != nil {
		v := yes(*admin)
		p.IsAdmin = &v
	}
	change, err := getSimpleText(a.reader, "Change password? (y/N)", a.out)
	if err != nil {
		return err
	}
	if yes(change) {
		pw, err := getPassword(a.out)
		if err != nil {
			return err
		}
		p.Password = &pw
	}

	u, err := a.users.Update(ctx, id, p)
	if err != nil {
		return err
	}
	a.printf("Updated user %s.\n", u.Username)
	return nil
}

func (a *App) DeleteUser(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "User id")
	if err != nil {
		return err
	}
	if err := a.users.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted user %s.\n", id)
	return nil
}

func yes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
