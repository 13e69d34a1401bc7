package web

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
)

type APIHandlers struct {
	plugins   *plugin.Manager
	processes *process.Manager
	registry  *registry.Registry
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	plugins *plugin.Manager,
	processes *process.Manager,
	reg *registry.Registry,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		plugins:   plugins,
		processes: processes,
		registry:  reg,
		validator: validate,
		logger:    logger.With("module", "web"),
	}
}

// GetRegistry lists every registered plugin type with its declared actions,
// processes, and schemas, for driver discovery.
func (h *APIHandlers) GetRegistry(c fiber.Ctx) error {
	metadata := make([]PluginTypeMetadata, 0)

	for _, desc := range h.registry.Plugins() {
		metadata = append(metadata, transformPluginType(h.registry, desc))
	}

	return c.JSON(fiber.Map{"plugins": metadata})
}

// GetPlugins lists the configured plugin instances.
func (h *APIHandlers) GetPlugins(c fiber.Ctx) error {
	instances := h.plugins.List()

	responses := make([]PluginResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, transformInstance(instance))
	}

	return c.JSON(fiber.Map{"plugins": responses})
}

func (h *APIHandlers) CreatePlugin(c fiber.Ctx) error {
	var req CreatePluginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.plugins.Create(c.Context(), req.Plugin, req.Tenant, req.Config)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transformInstance(instance))
}

func (h *APIHandlers) ReconfigurePlugin(c fiber.Ctx) error {
	var req CreatePluginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.plugins.Reconfigure(c.Context(), req.Plugin, req.Tenant, req.Config)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(transformInstance(instance))
}

func (h *APIHandlers) DeletePlugin(c fiber.Ctx) error {
	name := c.Query("plugin")
	tenant := c.Query("tenant")

	if name == "" || tenant == "" {
		return badRequest(c, "plugin and tenant query parameters are required")
	}

	if err := h.plugins.Remove(c.Context(), name, tenant); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// InvokeAction performs one schema-validated plugin action.
func (h *APIHandlers) InvokeAction(c fiber.Ctx) error {
	var req InvokeActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !h.actionRegistered(req.Plugin, req.Action) {
		return notFound(c, "action not registered")
	}

	instance, err := h.plugins.Plugin(c.Context(), req.Plugin, req.Tenant)
	if err != nil {
		return handleError(c, err)
	}

	output, err := h.registry.Invoke(c.Context(), instance, req.Action, req.Parameters)
	if err != nil {
		return handleError(c, err)
	}

	if output == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(output)
}

func (h *APIHandlers) actionRegistered(pluginType, slug string) bool {
	for _, action := range h.registry.Actions(pluginType) {
		if action.Slug == slug {
			return true
		}
	}

	return false
}

func (h *APIHandlers) StartProcess(c fiber.Ctx) error {
	var req StartProcessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, ok := h.registry.ProcessStrategy(req.Plugin, req.Process); !ok {
		return notFound(c, "process type not registered")
	}

	instance, err := h.plugins.Plugin(c.Context(), req.Plugin, req.Tenant)
	if err != nil {
		return handleError(c, err)
	}

	rec, err := h.processes.Start(c.Context(), instance, req.Process, req.Parameters, req.CallbackURL)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *APIHandlers) GetProcesses(c fiber.Ctx) error {
	recs, err := h.processes.List(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"processes": transformRecords(recs)})
}

func (h *APIHandlers) GetProcess(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Process ID is required")
	}

	rec, err := h.processes.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(rec)
}

// CloseProcess ends a pending process early and returns its reconciled state.
func (h *APIHandlers) CloseProcess(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Process ID is required")
	}

	if err := h.processes.Close(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	rec, err := h.processes.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(rec)
}

func (h *APIHandlers) DeleteProcess(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Process ID is required")
	}

	if err := h.processes.Delete(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReceiveWebhook routes one inbound platform delivery to the instance
// publishing the addressed webhook slug. Authentication failures surface as
// 403; everything past authentication is acknowledged with 200 so the
// platform never retries application-level noise.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	pluginType := c.Params("plugin")
	slug := c.Params("slug")

	instance := h.webhookTarget(pluginType, slug)
	if instance == nil {
		return notFound(c, "no webhook published under this slug")
	}

	headers := make(http.Header)
	for key, values := range c.GetReqHeaders() {
		for _, value := range values {
			headers.Add(key, value)
		}
	}

	req := &plugin.WebhookRequest{
		Body:    c.Body(),
		Headers: headers,
	}

	if err := instance.ReceiveWebhook(c.Context(), req); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *APIHandlers) webhookTarget(pluginType, slug string) *plugin.Instance {
	for _, instance := range h.plugins.List() {
		if instance.Name() != pluginType {
			continue
		}

		spec := instance.Descriptor().Webhook
		if spec == nil {
			continue
		}

		if instance.ConfigString(spec.SlugConfigKey) == slug {
			return instance
		}
	}

	return nil
}
