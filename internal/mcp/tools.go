package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/cloudwinks/dispatch/internal/model"
)

func (s *Server) registerTools() {
	// dispatch_invoke — call a routine or scan a relation on a tenant database.
	s.mcpServer.AddTool(
		mcplib.NewTool("dispatch_invoke",
			mcplib.WithDescription(`Invoke a named target on a tenant database.

The target is classified automatically: names present in the tenant's
routine catalog are called as routines, everything else is scanned as a
relation. Parameters are an object mapping parameter names to values
(e.g. {"id": 42}); binding types are inferred from the JSON kinds. Omit
the object for zero-argument targets.

The result is the gateway's canonical response: an empty array, the
routine's decoded JSON payload, or an array of row objects.`),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithNumber("app_id",
				mcplib.Description("Tenant application id (positive integer)"),
				mcplib.Required(),
			),
			mcplib.WithString("name",
				mcplib.Description("Routine or relation name to invoke"),
				mcplib.Required(),
			),
			mcplib.WithObject("parameters",
				mcplib.Description("Parameter mapping (name→value). Omit for zero-argument targets."),
			),
		),
		s.handleInvoke,
	)

	// dispatch_classify — report how a name would be dispatched.
	s.mcpServer.AddTool(
		mcplib.NewTool("dispatch_classify",
			mcplib.WithDescription(`Report whether a target name resolves to a callable routine or a
queryable relation on the given tenant, without executing anything.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithNumber("app_id",
				mcplib.Description("Tenant application id (positive integer)"),
				mcplib.Required(),
			),
			mcplib.WithString("name",
				mcplib.Description("Target name to classify"),
				mcplib.Required(),
			),
		),
		s.handleClassify,
	)
}

func (s *Server) handleInvoke(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	appID := request.GetInt("app_id", 0)
	name := request.GetString("name", "")

	req := model.ExecuteRequest{AppID: int64(appID), Name: name}

	if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
		if err := json.Unmarshal(data, &req.Parameters); err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}

	result, err := s.gw.Execute(ctx, req)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleClassify(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	appID := request.GetInt("app_id", 0)
	name := request.GetString("name", "")
	if appID <= 0 || name == "" {
		return mcplib.NewToolResultError("app_id and name are required"), nil
	}

	kind, err := s.gw.Classify(ctx, int64(appID), name)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf(`{"kind":%q}`, kind.String())), nil
}
