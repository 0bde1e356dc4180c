package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethpandaops/bootstrapoor/pkg/api/docs"
	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/spec"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// BearerSecurityScheme is the name of the bearer token security definition.
const BearerSecurityScheme = "BearerAuth"

// documentVersion is the version advertised in the document info.
const documentVersion = "1.0"

var routeParamPattern = regexp.MustCompile(`\{([^}:]+):[^}]+\}`)

// BuildDocument renders the annotated base document for cfg and adds an
// operation for every route of app that the annotations do not describe.
// Paths in the document are relative to the global prefix.
func BuildDocument(cfg *config.Config, app chi.Routes) (*spec.Swagger, error) {
	info := *docs.SwaggerInfo
	info.Version = documentVersion
	info.BasePath = cfg.App.PrefixPath()
	info.Host = ""
	info.Schemes = []string{}

	if info.BasePath == "" {
		info.BasePath = "/"
	}

	if cfg.Swagger.ServerURL != "" {
		u, err := url.Parse(cfg.Swagger.ServerURL)
		if err != nil {
			return nil, fmt.Errorf("parsing swagger server url: %w", err)
		}

		info.Host = u.Host

		if u.Scheme != "" {
			info.Schemes = []string{u.Scheme}
		}
	}

	doc := &spec.Swagger{}
	if err := json.Unmarshal([]byte(info.ReadDoc()), doc); err != nil {
		return nil, fmt.Errorf("decoding base document: %w", err)
	}

	if doc.Info == nil {
		doc.Info = &spec.Info{}
	}

	doc.Info.Title = cfg.App.Name
	doc.Info.Description = cfg.App.Name + " API document"
	doc.Info.Version = documentVersion

	if doc.Paths == nil {
		doc.Paths = &spec.Paths{}
	}

	if doc.Paths.Paths == nil {
		doc.Paths.Paths = make(map[string]spec.PathItem, 8)
	}

	err := chi.Walk(app, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path, ok := documentPath(route)
		if !ok {
			return nil
		}

		addOperation(doc.Paths, method, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking routes: %w", err)
	}

	addBearerAuth(doc)

	return doc, nil
}

// documentPath converts a chi route pattern into a document path. Wildcard
// routes cannot be described and are skipped.
func documentPath(route string) (string, bool) {
	if strings.Contains(route, "*") {
		return "", false
	}

	path := routeParamPattern.ReplaceAllString(route, "{$1}")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if path == "" {
		path = "/"
	}

	return path, true
}

// addOperation adds a minimal operation for method and path unless one is
// already described.
func addOperation(paths *spec.Paths, method, path string) {
	item := paths.Paths[path]

	var slot **spec.Operation

	switch method {
	case http.MethodGet:
		slot = &item.Get
	case http.MethodPost:
		slot = &item.Post
	case http.MethodPut:
		slot = &item.Put
	case http.MethodPatch:
		slot = &item.Patch
	case http.MethodDelete:
		slot = &item.Delete
	case http.MethodHead:
		slot = &item.Head
	case http.MethodOptions:
		slot = &item.Options
	default:
		return
	}

	if *slot != nil {
		return
	}

	op := spec.NewOperation(operationID(method, path)).
		WithSummary(method+" "+path).
		WithTags("default").
		WithProduces("application/json").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("OK"))

	for _, match := range regexp.MustCompile(`\{([^}]+)\}`).FindAllStringSubmatch(path, -1) {
		op.AddParam(spec.PathParam(match[1]).Typed("string", ""))
	}

	*slot = op
	paths.Paths[path] = item
}

func operationID(method, path string) string {
	var sb strings.Builder

	sb.WriteString(strings.ToLower(method))

	for _, segment := range strings.Split(path, "/") {
		segment = strings.Trim(segment, "{}")
		if segment == "" {
			continue
		}

		sb.WriteString(strings.ToUpper(segment[:1]))
		sb.WriteString(segment[1:])
	}

	return sb.String()
}

// addBearerAuth attaches the bearer token security definition.
func addBearerAuth(doc *spec.Swagger) {
	scheme := spec.APIKeyAuth("Authorization", "header")
	scheme.Description = `Bearer token authentication. Format: "Bearer {token}"`
	scheme.AddExtension("x-bearer-format", "JWT")

	if doc.SecurityDefinitions == nil {
		doc.SecurityDefinitions = make(spec.SecurityDefinitions, 1)
	}

	doc.SecurityDefinitions[BearerSecurityScheme] = scheme
}

// mountDocs serves doc and the Swagger UI under /<path>. The UI persists
// entered credentials across page reloads.
func mountDocs(r chi.Router, log logrus.FieldLogger, path string, doc *spec.Swagger) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	serveDoc := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(body); err != nil {
			log.WithError(err).Debug("Failed to write document")
		}
	}

	base := "/" + path
	index := base + "/index.html"

	redirect := func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, index, http.StatusMovedPermanently)
	}

	r.Get(base+"-json", serveDoc)
	r.Get(base+"/doc.json", serveDoc)
	r.Get(base, redirect)
	r.Get(base+"/", redirect)
	r.Get(base+"/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
		httpSwagger.PersistAuthorization(true),
		httpSwagger.DocExpansion("list"),
	))

	return nil
}
