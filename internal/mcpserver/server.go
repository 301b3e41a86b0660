// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes work-order tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/orderservice"
)

const contractURI = "mechi://checklist-contract"

// Server wraps the MCP server with work-order tools.
type Server struct {
	mcp    *server.MCPServer
	orders *orderservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(orders *orderservice.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{orders: orders, logger: logger}

	s.mcp = server.NewMCPServer(
		"Mechi",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_order",
		mcp.WithDescription("Read a work order with its checklist, expenses and photos."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Order id")),
	), s.getOrder)

	s.mcp.AddTool(mcp.NewTool("list_orders",
		mcp.WithDescription("List work orders, newest first, with client name and vehicle plate."),
		mcp.WithString("status", mcp.Description("Optional status filter: pending, in_progress, completed, delivered")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of orders (default 50)")),
	), s.listOrders)

	s.mcp.AddTool(mcp.NewTool("set_checklist_item",
		mcp.WithDescription("Mark a checklist item completed or pending. "+
			"Completing a top-level item also completes its sub-tasks. "+
			"Read the contract via the get_checklist_contract tool first."),
		mcp.WithString("order_id", mcp.Required(), mcp.Description("Order id")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Checklist item id")),
		mcp.WithBoolean("completed", mcp.Required(), mcp.Description("New completion state")),
	), s.setChecklistItem)

	s.mcp.AddTool(mcp.NewTool("next_order_number",
		mcp.WithDescription("Preview the next order number (OT-YYYY-NNN). Nothing is reserved."),
	), s.nextOrderNumber)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the predefined checklist categories and their sub-items."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("check_orphans",
		mcp.WithDescription("Report sub-tasks whose parent item no longer exists. "+
			"Without order_id every order is checked."),
		mcp.WithString("order_id", mcp.Description("Optional order id")),
	), s.checkOrphans)

	s.mcp.AddTool(mcp.NewTool("upload_photo",
		mcp.WithDescription("Attach a photo to a work order. Accepts a data URL, raw base64 "+
			"or an http(s) URL. The image is resized and stored; if storage is unavailable "+
			"it is kept inline and a warning is returned."),
		mcp.WithString("order_id", mcp.Required(), mcp.Description("Order id")),
		mcp.WithString("image", mcp.Required(), mcp.Description("data:image/...;base64,..., base64 or http(s) URL")),
		mcp.WithString("file_name", mcp.Description("Optional original file name")),
		mcp.WithString("kind", mcp.Description("Optional photo kind: initial or final")),
		mcp.WithString("description", mcp.Description("Optional caption")),
	), s.uploadPhoto)

	s.mcp.AddTool(mcp.NewTool("get_checklist_contract",
		mcp.WithDescription("Returns the checklist structure contract. "+
			"Call this before editing checklists."),
	), s.getChecklistContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Checklist Contract",
			mcp.WithResourceDescription("How work-order checklists, progress and photos behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult turns a domain error into a tool error the model can act on.
func (s *Server) errorResult(tool string, err error) (*mcp.CallToolResult, error) {
	var tooLarge *apperr.DocumentTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return mcp.NewToolResultError(fmt.Sprintf("order too large: %d bytes, %d from inline photos (limit %d)",
			tooLarge.Size, tooLarge.PhotoBytes, tooLarge.Limit)), nil
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found"), nil
	case errors.Is(err, apperr.ErrNotConfigured):
		return mcp.NewToolResultError("storage not configured"), nil
	}
	s.logger.Debug("tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) getOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return s.errorResult("get_order", err)
	}
	return jsonResult(order)
}

func (s *Server) listOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.orders.ListOrders(ctx, orderservice.ListFilter{
		Status: req.GetString("status", ""),
		Limit:  req.GetInt("limit", 50),
	})
	return jsonResult(items)
}

func (s *Server) setChecklistItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID, err := req.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completed, err := req.RequireBool("completed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order, err := s.orders.SetChecklistItem(ctx, orderID, itemID, completed)
	if err != nil {
		return s.errorResult("set_checklist_item", err)
	}
	return jsonResult(map[string]any{
		"orderNumber":          order.OrderNumber,
		"completionPercentage": order.CompletionPercentage,
		"checklist":            order.Checklist,
	})
}

func (s *Server) nextOrderNumber(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	number, degraded := s.orders.NextNumber(ctx)
	if degraded {
		return mcp.NewToolResultText(number + " (fallback: existing numbers could not be read)"), nil
	}
	return mcp.NewToolResultText(number), nil
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.orders.ListCategories(ctx))
}

func (s *Server) checkOrphans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if orderID := req.GetString("order_id", ""); orderID != "" {
		orphans, err := s.orders.ChecklistOrphans(ctx, orderID)
		if err != nil {
			return s.errorResult("check_orphans", err)
		}
		if len(orphans) == 0 {
			return mcp.NewToolResultText("no orphans found"), nil
		}
		return jsonResult(orphans)
	}

	reports, err := s.orders.AllOrphans(ctx)
	if err != nil {
		return s.errorResult("check_orphans", err)
	}
	if len(reports) == 0 {
		return mcp.NewToolResultText("no orphans found"), nil
	}
	return jsonResult(reports)
}

func (s *Server) getChecklistContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChecklistContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ChecklistContract,
		},
	}, nil
}
