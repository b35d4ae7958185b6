package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"ctxengine/internal/config"
	"ctxengine/internal/facade"
	"ctxengine/internal/llm/openai"
	mylog "ctxengine/internal/log"
	ctxsqlite "ctxengine/internal/storage/sqlite"
)

// cmd/ctxengine is a thin wiring binary: open the store, build a Facade, and
// dispatch one action. It stays deliberately small; a full interactive
// CLI/MCP surface is a separate concern layered on top of the facade.
func main() {
	_ = config.LoadAndApply()

	dbPath := flag.String("db", "./ctxengine.db", "path to the sqlite database file")
	project := flag.String("project", "", "project ID (omit for projects.create/projects.list)")
	action := flag.String("action", "retrieval.context_query", "facade action to dispatch, e.g. entities.search")
	query := flag.String("query", "", "query text, used by search/retrieval actions")
	name := flag.String("name", "", "project name, used by projects.create")
	root := flag.String("root", ".", "project root path, used by projects.create/indexing.codebase")
	flag.Parse()

	lg := mylog.New()
	ctx := context.Background()

	db, err := ctxsqlite.Open(ctx, *dbPath)
	if err != nil {
		lg.Error("db.open", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	chat := openai.NewFromEnv()
	f, err := facade.New(db, chat, chat, 16)
	if err != nil {
		lg.Error("facade.new", "error", err.Error())
		os.Exit(1)
	}

	params := facade.Params{}
	if *project != "" {
		params["projectID"] = *project
	}
	if *query != "" {
		params["query"] = *query
	}
	if *name != "" {
		params["name"] = *name
	}
	if *root != "" {
		params["rootPath"] = *root
		params["root"] = *root
	}

	env := f.Dispatch(ctx, *action, params)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !env.Success {
		os.Exit(1)
	}
}
