// talkboard is a command-line front end for the client core: sign in as a
// teacher or student, inspect the active session and its permissions, and
// browse the organization directory the way the UI does.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"talkboard.app/internal/config"
	"talkboard.app/internal/credential"
	"talkboard.app/internal/directory"
	"talkboard.app/internal/obs"
	"talkboard.app/internal/permission"
	"talkboard.app/internal/storage"
	"talkboard.app/internal/workspace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	obs.Init()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("wire client: %v", err)
	}

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: talkboard <command> [args]

  login <teacher|student> <email>   sign in via the backend
  whoami                            show the active session
  orgs                              list organizations for the active session
  schools <org-id>                  list schools under an organization
  select-school <org-id> <school-id>  switch the workspace to a school
  mode <personal|organization>      switch the workspace scope
  logout [teacher|student|all]      sign out (default: all)`)
}

type app struct {
	cfg      config.Config
	teacher  *credential.Store
	student  *credential.Store
	resolver *credential.Resolver
	manager  *credential.Manager
	client   *directory.Client
	cache    *directory.Cache
	ws       *workspace.Context
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	kv, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	teacher, err := credential.NewStore(credential.KindTeacher, kv)
	if err != nil {
		return nil, err
	}
	student, err := credential.NewStore(credential.KindStudent, kv)
	if err != nil {
		return nil, err
	}
	resolver, err := credential.NewResolver(teacher, student)
	if err != nil {
		return nil, err
	}
	manager, err := credential.NewManager(teacher, student, kv)
	if err != nil {
		return nil, err
	}
	client, err := directory.NewClient(cfg.APIBaseURL,
		directory.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		directory.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst),
	)
	if err != nil {
		return nil, err
	}
	cache, err := directory.NewCache(client, nil)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.NewContext(kv, resolver, cache)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg, teacher: teacher, student: student,
		resolver: resolver, manager: manager,
		client: client, cache: cache, ws: ws,
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage.KV, error) {
	switch cfg.Storage {
	case "redis":
		return storage.NewRedis(ctx, redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	case "postgres":
		return storage.OpenPG(cfg.PostgresDSN)
	default:
		return storage.NewMemory(), nil
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <teacher|student> <email>")
		}
		return a.login(ctx, args[0], args[1])
	case "whoami":
		return a.whoami()
	case "orgs":
		return a.orgs(ctx)
	case "schools":
		if len(args) != 1 {
			return fmt.Errorf("usage: schools <org-id>")
		}
		return a.schools(ctx, args[0])
	case "select-school":
		if len(args) != 2 {
			return fmt.Errorf("usage: select-school <org-id> <school-id>")
		}
		return a.selectSchool(ctx, args[0], args[1])
	case "mode":
		if len(args) != 1 {
			return fmt.Errorf("usage: mode <personal|organization>")
		}
		return a.ws.SetMode(ctx, workspace.Mode(args[0]))
	case "logout":
		scope := "all"
		if len(args) == 1 {
			scope = args[0]
		}
		return a.logout(ctx, scope)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, kind, email string) error {
	if kind != "teacher" && kind != "student" {
		return fmt.Errorf("unknown principal kind %q", kind)
	}
	body, _ := json.Marshal(map[string]string{"email": email, "kind": kind})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := (&http.Client{Timeout: a.cfg.HTTPTimeout}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	var payload struct {
		Token string                `json:"token"`
		User  *credential.Principal `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	store := a.teacher
	if kind == "student" {
		store = a.student
	}
	if err := store.Login(ctx, payload.Token, payload.User); err != nil {
		return err
	}
	if kind == "teacher" {
		if err := store.RefreshRoles(ctx, a.client); err != nil {
			fmt.Printf("signed in, but role refresh failed: %v\n", err)
			return nil
		}
	}
	fmt.Printf("signed in as %s (%s)\n", payload.User.Email, kind)
	return nil
}

func (a *app) whoami() error {
	kind, cred, ok := a.resolver.Active()
	if !ok {
		fmt.Println("not signed in")
		return nil
	}
	fmt.Printf("active session: %s %s <%s>\n", kind, cred.Principal.Name, cred.Principal.Email)
	if kind == credential.KindTeacher {
		subject := cred.Principal.Subject()
		perms := permission.Effective(subject)
		fmt.Printf("role: %s  roles cache: %v\n", cred.Principal.Role, a.teacher.Roles())
		fmt.Printf("can create classrooms: %v (max %d)\n", perms.CanCreateClassrooms, perms.MaxClassrooms)
		fmt.Printf("can edit school settings: %v\n", permission.Has(subject, permission.KeyEditSchoolSettings))
	}
	fmt.Printf("workspace: %s", a.ws.Mode())
	if org := a.ws.SelectedOrganization(); org != nil {
		fmt.Printf(" / %s", org.Name)
	}
	if school := a.ws.SelectedSchool(); school != nil {
		fmt.Printf(" / %s", school.Name)
	}
	fmt.Println()
	return nil
}

func (a *app) orgs(ctx context.Context) error {
	a.ws.FetchOrganizations(ctx)
	if err := a.ws.Err(); err != nil {
		return err
	}
	for _, org := range a.ws.Organizations() {
		fmt.Printf("%s  %s\n", org.ID, org.DisplayName)
	}
	return nil
}

func (a *app) schools(ctx context.Context, orgID string) error {
	if err := a.cache.RefreshSchools(ctx, a.resolver.Token(), orgID); err != nil {
		return err
	}
	for _, school := range a.cache.Schools(orgID) {
		fmt.Printf("%s  %s\n", school.ID, school.Name)
	}
	return nil
}

func (a *app) selectSchool(ctx context.Context, orgID, schoolID string) error {
	token := a.resolver.Token()
	org, err := a.client.Organization(ctx, token, orgID)
	if err != nil {
		return err
	}
	school, err := a.client.School(ctx, token, schoolID)
	if err != nil {
		return err
	}
	if err := a.ws.SelectSchool(ctx, school, org); err != nil {
		return err
	}
	a.cache.SelectNode(directory.Node{Type: directory.NodeSchool, ID: school.ID, OrgID: org.ID})
	fmt.Printf("workspace: organization / %s / %s\n", org.Name, school.Name)
	return nil
}

func (a *app) logout(ctx context.Context, scope string) error {
	switch scope {
	case "teacher":
		return a.manager.LogoutTeacher(ctx)
	case "student":
		return a.manager.LogoutStudent(ctx)
	case "all":
		return a.manager.ClearAllAuth(ctx)
	default:
		return fmt.Errorf("unknown logout scope %q", scope)
	}
}
