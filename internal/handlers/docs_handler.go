package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DocsHandler serves the OpenAPI description of the backtest API
type DocsHandler struct {
	version string
}

// NewDocsHandler creates a new documentation handler
func NewDocsHandler(version string) *DocsHandler {
	return &DocsHandler{version: version}
}

// OpenAPISpec represents the OpenAPI specification structure
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Paths      map[string]interface{} `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo represents the API information
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// OpenAPIComponents represents the reusable components
type OpenAPIComponents struct {
	Schemas map[string]interface{} `json:"schemas"`
}

// GetOpenAPIJSON returns the OpenAPI document in JSON format
func (h *DocsHandler) GetOpenAPIJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.generateSpec())
}

// GetSwaggerUI returns the Swagger UI HTML page
func (h *DocsHandler) GetSwaggerUI(c *gin.Context) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>VaR Backtest API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui.css" />
    <style>
        .swagger-ui .topbar { display: none; }
        body { margin: 0; padding: 20px; background: #fafafa; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/docs/openapi.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                tryItOutEnabled: true,
                supportedSubmitMethods: ['get', 'post']
            });
        };
    </script>
</body>
</html>`

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, html)
}

type operation struct {
	method, path, summary, tag, requestSchema, responseSchema, status string
}

var operations = []operation{
	{"post", "/v1/backtests", "Run a backtest", "backtests", "BacktestRequest", "Report", "201"},
	{"post", "/v1/backtests/batch", "Run several backtests concurrently", "backtests", "BacktestBatch", "BatchItems", "200"},
	{"get", "/v1/backtests", "List stored reports", "backtests", "", "Reports", "200"},
	{"get", "/v1/backtests/{id}", "Get a stored report", "backtests", "", "Report", "200"},
	{"get", "/v1/backtests/{id}/chart", "Chart series of a stored report", "backtests", "", "Chart", "200"},
	{"post", "/v1/tests/kupiec", "Kupiec proportion-of-failures test", "tests", "ExceedanceRequest", "CoverageResult", "200"},
	{"post", "/v1/tests/christoffersen", "Christoffersen independence test", "tests", "ExceedanceRequest", "IndependenceResult", "200"},
	{"post", "/v1/tests/conditional", "Conditional coverage test", "tests", "ConditionalRequest", "TestResult", "200"},
	{"get", "/v1/health", "Health check", "system", "", "Health", "200"},
	{"get", "/v1/info", "API information", "system", "", "Info", "200"},
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func (h *DocsHandler) generateSpec() OpenAPISpec {
	paths := make(map[string]interface{})
	for _, op := range operations {
		entry := map[string]interface{}{
			"summary": op.summary,
			"tags":    []string{op.tag},
			"responses": map[string]interface{}{
				op.status: map[string]interface{}{
					"description": "Success",
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{"schema": ref(op.responseSchema)},
					},
				},
				"422": map[string]interface{}{"description": "Invalid input", "content": errorContent()},
			},
		}
		if op.requestSchema != "" {
			entry["requestBody"] = map[string]interface{}{
				"required": true,
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{"schema": ref(op.requestSchema)},
				},
			}
		}

		methods, ok := paths[op.path].(map[string]interface{})
		if !ok {
			methods = make(map[string]interface{})
			paths[op.path] = methods
		}
		methods[op.method] = entry
	}

	return OpenAPISpec{
		OpenAPI: "3.0.0",
		Info: OpenAPIInfo{
			Title:       "VaR Backtest API",
			Version:     h.version,
			Description: "Backtests Value-at-Risk thresholds with the Kupiec, Christoffersen and conditional coverage tests",
		},
		Paths:      paths,
		Components: OpenAPIComponents{Schemas: schemas()},
	}
}

func errorContent() map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": ref("Error")},
	}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	number  = map[string]interface{}{"type": "number"}
	integer = map[string]interface{}{"type": "integer"}
	str     = map[string]interface{}{"type": "string"}
	boolean = map[string]interface{}{"type": "boolean"}
)

func arrayOf(item interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": item}
}

func schemas() map[string]interface{} {
	testResult := map[string]interface{}{
		"name":               str,
		"statistic":          number,
		"p_value":            number,
		"degrees_of_freedom": integer,
		"unavailable":        boolean,
	}

	return map[string]interface{}{
		"BacktestRequest": object(map[string]interface{}{
			"symbol":     str,
			"returns":    arrayOf(number),
			"prices":     arrayOf(number),
			"threshold":  number,
			"confidence": number,
		}),
		"BacktestBatch":     arrayOf(ref("BacktestRequest")),
		"ExceedanceRequest": object(map[string]interface{}{"exceedances": arrayOf(boolean), "confidence": number}, "exceedances"),
		"ConditionalRequest": object(map[string]interface{}{
			"exceedances":  arrayOf(boolean),
			"confidence":   number,
			"coverage":     ref("TestResult"),
			"independence": ref("TestResult"),
		}),
		"TestResult":         object(testResult),
		"CoverageResult":     object(testResult),
		"IndependenceResult": object(testResult),
		"Report": object(map[string]interface{}{
			"id":                 str,
			"symbol":             str,
			"confidence":         number,
			"threshold":          number,
			"observations":       integer,
			"exceedances":        integer,
			"exceedance_indices": arrayOf(integer),
			"coverage":           ref("CoverageResult"),
			"independence":       ref("IndependenceResult"),
			"conditional":        ref("TestResult"),
			"degenerate":         boolean,
		}),
		"Reports": arrayOf(ref("Report")),
		"BatchItems": arrayOf(object(map[string]interface{}{
			"index":    integer,
			"report":   ref("Report"),
			"verdicts": arrayOf(ref("Verdict")),
			"error":    ref("Error"),
		})),
		"Verdict": object(map[string]interface{}{
			"test":        str,
			"alpha":       number,
			"reject":      boolean,
			"p_value":     number,
			"reliable":    boolean,
			"unavailable": boolean,
		}),
		"Chart": object(map[string]interface{}{
			"title":     str,
			"threshold": number,
			"points":    arrayOf(object(map[string]interface{}{"index": integer, "return": number, "breach": boolean})),
		}),
		"Health": object(map[string]interface{}{"status": str, "version": str, "uptime": str}),
		"Info":   object(map[string]interface{}{"name": str, "version": str, "environment": str}),
		"Error":  object(map[string]interface{}{"code": str, "message": str}),
	}
}
