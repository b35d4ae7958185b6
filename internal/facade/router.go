package facade

import (
	"context"

	"ctxengine/internal/analytics"
	"ctxengine/internal/convstore"
	"ctxengine/internal/ctxerr"
	"ctxengine/internal/entitystore"
	"ctxengine/internal/graphstore"
	"ctxengine/internal/indexer"
	"ctxengine/internal/models"
	"ctxengine/internal/retrieval"
)

// Params is the free-form action payload; required keys are validated per
// action before any component method runs.
type Params map[string]any

var requiredParams = map[string][]string{
	"projects.create":            {"name", "rootPath"},
	"projects.list":               {},
	"projects.get":                {"projectID"},
	"projects.set_active":         {"projectID"},
	"projects.delete":             {"projectID"},
	"entities.add":                {"projectID", "type", "name", "qualifiedName"},
	"entities.get":                {"projectID", "entityID"},
	"entities.search":             {"projectID", "query"},
	"entities.delete":             {"projectID", "entityID"},
	"entities.resolve_id":         {"projectID", "qualifiedName"},
	"indexing.codebase":           {"projectID", "root"},
	"indexing.document":           {"projectID", "root", "path"},
	"indexing.sync":               {"projectID", "root", "since"},
	"indexing.status":             {"projectID"},
	"agent.checkpoint.get":        {"projectID", "sessionID"},
	"agent.checkpoint.clear":      {"projectID", "sessionID"},
	"conversations.session.create": {"projectID"},
	"conversations.session.get":    {"projectID", "sessionID"},
	"conversations.session.update_status": {"projectID", "sessionID", "status"},
	"conversations.message.add":    {"projectID", "sessionID", "role", "content"},
	"conversations.message.list":   {"projectID", "sessionID"},
	"conversations.message.search": {"projectID", "query"},
	"conversations.decision.create": {"projectID", "sessionID", "description"},
	"conversations.decision.supersede": {"projectID", "oldDecisionID", "newDecisionID"},
	"conversations.decision.search": {"projectID", "query"},
	"graph.link":                   {"projectID", "sourceID", "targetID", "type"},
	"graph.query":                  {"projectID", "entityID"},
	"graph.stats":                  {"projectID"},
	"retrieval.context_query":      {"projectID", "query"},
	"analytics.stats":              {"projectID"},
	"analytics.dashboard":          {"projectID"},
	"analytics.feedback":           {"projectID", "queryID", "useful"},
}

// Dispatch validates required params for action, resolves the project's
// component bundle, and routes to the matching handler. Every error path
// and every handler result is normalized into a ctxerr.Envelope — Dispatch
// itself never returns a bare error.
func (f *Facade) Dispatch(ctx context.Context, action string, p Params) ctxerr.Envelope {
	required, known := requiredParams[action]
	if !known {
		return ctxerr.Fail(ctxerr.New(ctxerr.KindInvalidInput, "unknown action: "+action))
	}
	for _, key := range required {
		if _, ok := p[key]; !ok {
			return ctxerr.Fail(ctxerr.New(ctxerr.KindInvalidInput, "missing required param: "+key).WithHint("action " + action + " requires " + key))
		}
	}

	handler, ok := handlers[action]
	if !ok {
		return ctxerr.Fail(ctxerr.New(ctxerr.KindInternal, "no handler registered for known action: "+action))
	}
	data, err := handler(ctx, f, p)
	if err != nil {
		return ctxerr.Fail(err)
	}
	return ctxerr.Ok(data)
}

type actionHandler func(ctx context.Context, f *Facade, p Params) (any, error)

var handlers = map[string]actionHandler{
	"projects.create":      handleProjectsCreate,
	"projects.list":        handleProjectsList,
	"projects.get":         handleProjectsGet,
	"projects.set_active":  handleProjectsSetActive,
	"projects.delete":      handleProjectsDelete,
	"entities.add":         handleEntitiesAdd,
	"entities.get":         handleEntitiesGet,
	"entities.search":      handleEntitiesSearch,
	"entities.delete":      handleEntitiesDelete,
	"entities.resolve_id":  handleEntitiesResolveID,
	"indexing.codebase":    handleIndexingCodebase,
	"indexing.document":    handleIndexingDocument,
	"indexing.sync":        handleIndexingSync,
	"indexing.status":      handleIndexingStatus,
	"agent.checkpoint.get":   handleCheckpointGet,
	"agent.checkpoint.clear": handleCheckpointClear,
	"conversations.session.create":        handleSessionCreate,
	"conversations.session.get":           handleSessionGet,
	"conversations.session.update_status": handleSessionUpdateStatus,
	"conversations.message.add":           handleMessageAdd,
	"conversations.message.list":          handleMessageList,
	"conversations.message.search":        handleMessageSearch,
	"conversations.decision.create":       handleDecisionCreate,
	"conversations.decision.supersede":    handleDecisionSupersede,
	"conversations.decision.search":       handleDecisionSearch,
	"graph.link":              handleGraphLink,
	"graph.query":             handleGraphQuery,
	"graph.stats":             handleGraphStats,
	"retrieval.context_query": handleContextQuery,
	"analytics.stats":         handleAnalyticsStats,
	"analytics.dashboard":     handleAnalyticsDashboard,
	"analytics.feedback":      handleAnalyticsFeedback,
}

func str(p Params, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func strSlice(p Params, key string) []string {
	raw, ok := p[key].([]string)
	if ok {
		return raw
	}
	if xs, ok := p[key].([]any); ok {
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intParam(p Params, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func boolParam(p Params, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func handleProjectsCreate(ctx context.Context, f *Facade, p Params) (any, error) {
	cfg := map[string]string{}
	return f.db.CreateProject(ctx, str(p, "name"), str(p, "rootPath"), cfg)
}

func handleProjectsList(ctx context.Context, f *Facade, p Params) (any, error) {
	return f.db.ListProjects(ctx)
}

func handleProjectsGet(ctx context.Context, f *Facade, p Params) (any, error) {
	proj, _, err := f.db.GetProject(ctx, str(p, "projectID"))
	return proj, err
}

func handleProjectsSetActive(ctx context.Context, f *Facade, p Params) (any, error) {
	return nil, f.db.SetActive(ctx, str(p, "projectID"))
}

func handleProjectsDelete(ctx context.Context, f *Facade, p Params) (any, error) {
	if err := f.db.DeleteProject(ctx, str(p, "projectID")); err != nil {
		return nil, err
	}
	f.InvalidateProject(str(p, "projectID"))
	return nil, nil
}

func handleEntitiesAdd(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.entities.Create(ctx, entitystore.Input{
		Type:          models.EntityType(str(p, "type")),
		Name:          str(p, "name"),
		QualifiedName: str(p, "qualifiedName"),
		Content:       str(p, "content"),
		FilePath:      str(p, "filePath"),
		StartLine:     intParam(p, "startLine", 0),
		EndLine:       intParam(p, "endLine", 0),
	})
}

func handleEntitiesGet(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.entities.Get(ctx, str(p, "entityID"))
}

func handleEntitiesSearch(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.entities.Search(ctx, str(p, "query"), entitystore.SearchOptions{
		Type:  models.EntityType(str(p, "type")),
		Limit: intParam(p, "limit", 0),
	})
}

func handleEntitiesDelete(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.entities.Delete(ctx, str(p, "entityID"))
}

func handleEntitiesResolveID(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	e, err := c.entities.GetByQualifiedName(ctx, str(p, "qualifiedName"))
	if err != nil {
		return nil, err
	}
	return e.ID, nil
}

func handleIndexingCodebase(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.indexer.Run(ctx, str(p, "projectID"), indexer.Options{
		Root:    str(p, "root"),
		Include: strSlice(p, "include"),
		Exclude: strSlice(p, "exclude"),
		Force:   boolParam(p, "force"),
	})
}

func handleIndexingDocument(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.indexer.IndexFile(ctx, str(p, "root"), str(p, "path"))
}

func handleIndexingSync(ctx context.Context, f *Facade, p Params) (any, error) {
	return nil, ctxerr.New(ctxerr.KindInvalidInput, "indexing.sync requires a VcsDiff capability wired by the caller; use watch.NewGitSync directly")
}

func handleIndexingStatus(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	n, err := c.entities.Count(ctx)
	return map[string]int{"entityCount": n}, err
}

func handleCheckpointGet(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.indexer.Checkpoint.Latest(ctx, str(p, "sessionID"))
}

func handleCheckpointClear(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.indexer.Checkpoint.Clear(ctx, str(p, "sessionID"))
}

func handleSessionCreate(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.CreateSession(ctx, str(p, "title"))
}

func handleSessionGet(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.GetSession(ctx, str(p, "sessionID"))
}

func handleSessionUpdateStatus(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.convos.UpdateSessionStatus(ctx, str(p, "sessionID"), models.SessionStatus(str(p, "status")))
}

func handleMessageAdd(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.AddMessage(ctx, str(p, "sessionID"), models.MessageRole(str(p, "role")), str(p, "content"), nil, convstore.MessageOptions{
		MaxActiveMessages: intParam(p, "maxActiveMessages", 0),
		AutoSummarize:     boolParam(p, "autoSummarize"),
	})
}

func handleMessageList(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.ListMessages(ctx, str(p, "sessionID"))
}

func handleMessageSearch(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.SearchMessages(ctx, str(p, "query"), str(p, "sessionID"), intParam(p, "limit", 0))
}

func handleDecisionCreate(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.CreateDecision(ctx, convstore.DecisionInput{
		SessionID:    str(p, "sessionID"),
		Description:  str(p, "description"),
		Context:      str(p, "context"),
		Alternatives: strSlice(p, "alternatives"),
	})
}

func handleDecisionSupersede(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.convos.SupersedeDecision(ctx, str(p, "oldDecisionID"), str(p, "newDecisionID"))
}

func handleDecisionSearch(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.convos.SearchDecisions(ctx, str(p, "query"), intParam(p, "limit", 0))
}

func handleGraphLink(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.graph.Create(ctx, graphstore.Input{
		SourceID: str(p, "sourceID"),
		TargetID: str(p, "targetID"),
		Type:     models.RelationshipType(str(p, "type")),
		Weight:   weightOrDefault(p),
	})
}

func weightOrDefault(p Params) float64 {
	if v, ok := p["weight"].(float64); ok {
		return v
	}
	return 1.0
}

func handleGraphQuery(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.graph.GetNeighborhood(ctx, str(p, "entityID"), intParam(p, "maxDepth", 2), graphstore.DirBoth, nil)
}

func handleGraphStats(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	count, err := c.graph.Count(ctx)
	if err != nil {
		return nil, err
	}
	avgDegree, err := c.graph.GetAverageDegree(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := c.graph.StatsByType(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"edgeCount": count, "averageDegree": avgDegree, "byType": byType}, nil
}

func handleContextQuery(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	opt := retrieval.SearchOptions{Limit: intParam(p, "limit", 0)}
	results, err := c.search.Search(ctx, str(p, "query"), opt)
	if err != nil {
		return nil, err
	}
	assembled := retrieval.Assemble(results, retrieval.AssembleOptions{TokenBudget: intParam(p, "tokenBudget", 0)})
	_, _ = c.analytics.Record(ctx, analyticsLogInput(p, assembled))
	return assembled, nil
}

func handleAnalyticsStats(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return c.analytics.GetStats(ctx, periodOrDefault(p))
}

func handleAnalyticsDashboard(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	stats, err := c.analytics.GetStats(ctx, periodOrDefault(p))
	if err != nil {
		return nil, err
	}
	return map[string]any{"stats": stats, "summary": stats.Summary()}, nil
}

func handleAnalyticsFeedback(ctx context.Context, f *Facade, p Params) (any, error) {
	c, err := f.bundleFor(ctx, str(p, "projectID"))
	if err != nil {
		return nil, err
	}
	return nil, c.analytics.RecordFeedback(ctx, str(p, "queryID"), boolParam(p, "useful"))
}

func periodOrDefault(p Params) analytics.Period {
	if v := str(p, "period"); v != "" {
		return analytics.Period(v)
	}
	return analytics.PeriodAll
}

func analyticsLogInput(p Params, a retrieval.AssembledContext) analytics.LogInput {
	return analytics.LogInput{
		Query:            str(p, "query"),
		TokensRetrieved:  a.TokensUsed,
		AverageRelevance: a.Confidence,
	}
}
