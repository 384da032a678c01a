package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/types"
)

// TemplateSummary is one row of the template index.
type TemplateSummary struct {
	ID         string `json:"id"`
	Handle     string `json:"handle"`
	Version    string `json:"version,omitempty"`
	Revision   uint64 `json:"revision"`
	Source     string `json:"source,omitempty"`
	Schematics int    `json:"schematics"`
	Bound      int    `json:"bound"`
}

// EdgeView is a dependency edge as served by the API.
type EdgeView struct {
	Template string           `json:"template"`
	Target   schematic.Target `json:"target"`
	Index    int              `json:"index"`
}

// ObjectSummary describes one object a template is bound to.
type ObjectSummary struct {
	ID           types.ObjectID `json:"id"`
	Templates    []string       `json:"templates"`
	Capabilities []string       `json:"capabilities"`
	Children     int            `json:"children"`
}

// TemplateDetail is everything the inspector knows about one template.
type TemplateDetail struct {
	TemplateSummary
	Digest     string                `json:"digest,omitempty"`
	Schematics []schematic.Schematic `json:"schematics"`
	Edges      []EdgeView            `json:"edges"`
	Dependents []string              `json:"dependents"`
	Objects    []ObjectSummary       `json:"objects"`
}

func (s *Server) summarize(template *registry.Template) TemplateSummary {
	return TemplateSummary{
		ID:         template.ID,
		Handle:     template.Handle.String(),
		Version:    template.Version,
		Revision:   template.Revision,
		Source:     template.Source,
		Schematics: len(template.Schematics),
		Bound:      len(s.objects.Bound(template.ID)),
	}
}

func (s *Server) summaries() []TemplateSummary {
	all := s.manager.Store().GetAll()
	out := make([]TemplateSummary, 0, len(all))
	for _, template := range all {
		out = append(out, s.summarize(template))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) detail(id string) (*TemplateDetail, bool) {
	template, ok := s.manager.Lookup(id)
	if !ok {
		return nil, false
	}
	analyzer := s.manager.Analyzer()

	detail := &TemplateDetail{
		TemplateSummary: s.summarize(template),
		Digest:          template.Digest,
		Schematics:      template.Schematics,
		Edges:           make([]EdgeView, 0),
		Dependents:      analyzer.GetDependents(id),
		Objects:         make([]ObjectSummary, 0),
	}
	if detail.Dependents == nil {
		detail.Dependents = make([]string, 0)
	}
	for _, edge := range analyzer.Edges(template) {
		detail.Edges = append(detail.Edges, EdgeView{Template: edge.To, Target: edge.Target, Index: edge.Index})
	}
	for _, obj := range s.objects.Bound(id) {
		detail.Objects = append(detail.Objects, ObjectSummary{
			ID:           obj,
			Templates:    s.objects.Templates(obj),
			Capabilities: s.objects.Capabilities(obj),
			Children:     len(s.objects.Children(obj)),
		})
	}
	return detail, true
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.summaries())
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.detail(r.PathValue("id"))
	if !ok {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "unknown template"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"templates": s.manager.Store().Count(),
		"clients":   s.hub.Clients(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}
