package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	policyengine "github.com/mraaron360/RBAC-AND-ABAC"
	"github.com/mraaron360/RBAC-AND-ABAC/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "validate":
		handleValidate()
	case "assign":
		handleAssign()
	case "decide":
		handleDecide()
	case "export":
		handleExport()
	case "report":
		handleReport()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("policyctl - RBAC/ABAC policy tooling")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  policyctl validate <config>                                   - Validate configuration and policy expressions")
	fmt.Println("  policyctl assign <config> <users.csv> [out.json|out.csv]      - Compute role assignments for all users")
	fmt.Println("  policyctl decide <config> <users.csv> <user> <app> <perm> [hour] - Evaluate one access decision")
	fmt.Println("  policyctl export <config> <users.csv> <out.json>              - Shape assignments for the identity provider")
	fmt.Println("  policyctl report <config> <users.csv> <app> <perm> <hour> <out.csv> - Decision report for every user")
	fmt.Println()
	fmt.Println("Supported config formats: .yaml, .yml, .json")
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policyctl validate <config>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	errs := cfg.ValidatePolicies()
	for _, err := range errs {
		fmt.Printf("  REJECTED %v\n", err)
	}
	if len(errs) > 0 {
		fmt.Printf("%d of %d policy expressions rejected\n", len(errs), len(cfg.Policies))
		os.Exit(1)
	}
	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Roles:    %d\n", len(cfg.Rbac.Roles))
	fmt.Printf("  Mappings: %d\n", len(cfg.Rbac.Mappings))
	fmt.Printf("  Policies: %d\n", len(cfg.Policies))
}

func handleAssign() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: policyctl assign <config> <users.csv> [out.json|out.csv]")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	users := loadUsers(os.Args[3])

	assignments := make([]*policyengine.Assignment, 0, len(users))
	for _, u := range users {
		assignments = append(assignments, policyengine.AssignRoles(u, &cfg.Rbac))
	}

	if len(os.Args) < 5 {
		data, _ := json.MarshalIndent(assignments, "", "  ")
		fmt.Println(string(data))
		return
	}

	out := os.Args[4]
	f, err := os.Create(out)
	if err != nil {
		fatal("create output", err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
		err = policyengine.WriteAssignmentReportCSV(f, assignments)
	default:
		err = policyengine.WriteReportJSON(f, assignments)
	}
	if err != nil {
		fatal("write report", err)
	}
	fmt.Printf("Wrote %d assignments to %s\n", len(assignments), out)
}

func handleDecide() {
	if len(os.Args) < 7 {
		fmt.Println("Usage: policyctl decide <config> <users.csv> <user> <app> <perm> [hour]")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	index := policyengine.IndexUsers(loadUsers(os.Args[3]))
	user, ok := index.Lookup(os.Args[4])
	if !ok {
		fatal("lookup user", fmt.Errorf("unknown user %q", os.Args[4]))
	}

	hour := int64(time.Now().Hour())
	if len(os.Args) > 7 {
		n, err := strconv.ParseInt(os.Args[7], 10, 64)
		if err != nil {
			fatal("parse hour", err)
		}
		hour = n
	}

	eng, err := policyengine.NewEngine(cfg)
	if err != nil {
		fatal("build engine", err)
	}
	resource := &policyengine.Resource{App: os.Args[5], Permission: os.Args[6]}
	dec := eng.Decide(context.Background(), user, resource, policyengine.Context{"hour": hour})
	data, _ := json.MarshalIndent(dec, "", "  ")
	fmt.Println(string(data))
}

func handleExport() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: policyctl export <config> <users.csv> <out.json>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	users := loadUsers(os.Args[3])

	assignments := make([]*policyengine.Assignment, 0, len(users))
	for _, u := range users {
		assignments = append(assignments, policyengine.AssignRoles(u, &cfg.Rbac))
	}
	payload := policyengine.BuildExportPayload(assignments)
	data, err := payload.ToJSON()
	if err != nil {
		fatal("encode export", err)
	}
	if err := os.WriteFile(os.Args[4], data, 0644); err != nil {
		fatal("write export", err)
	}
	fmt.Printf("Exported %d users and %d groups to %s\n", len(payload.Users), len(payload.Groups), os.Args[4])
}

func handleReport() {
	if len(os.Args) < 8 {
		fmt.Println("Usage: policyctl report <config> <users.csv> <app> <perm> <hour> <out.csv>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	users := loadUsers(os.Args[3])
	hour, err := strconv.ParseInt(os.Args[6], 10, 64)
	if err != nil {
		fatal("parse hour", err)
	}

	audit := stores.NewMemoryDecisionStore()
	eng, err := policyengine.NewEngine(cfg, policyengine.WithDecisionStore(audit))
	if err != nil {
		fatal("build engine", err)
	}

	ctx := context.Background()
	resource := &policyengine.Resource{App: os.Args[4], Permission: os.Args[5]}
	for _, u := range users {
		eng.Decide(ctx, u, resource, policyengine.Context{"hour": hour})
	}

	records, err := audit.ListDecisions(ctx, policyengine.DecisionFilter{Limit: len(users)})
	if err != nil {
		fatal("list decisions", err)
	}
	f, err := os.Create(os.Args[7])
	if err != nil {
		fatal("create report", err)
	}
	defer f.Close()
	if err := policyengine.WriteDecisionReportCSV(f, records); err != nil {
		fatal("write report", err)
	}
	fmt.Printf("Wrote %d decisions to %s\n", len(records), os.Args[7])
}

func loadConfig(path string) *policyengine.Config {
	cfg, err := policyengine.NewConfigLoader().LoadFile(path)
	if err != nil {
		fatal("load config", err)
	}
	return cfg
}

func loadUsers(path string) []*policyengine.User {
	f, err := os.Open(path)
	if err != nil {
		fatal("open users", err)
	}
	defer f.Close()
	users, err := policyengine.LoadUsersCSV(f)
	if err != nil {
		fatal("load users", err)
	}
	return users
}

func fatal(what string, err error) {
	fmt.Printf("Error: %s: %v\n", what, err)
	os.Exit(1)
}
