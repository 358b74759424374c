package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/dukani-next/internal/http/handlers/shared"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RolePolicyRequest allow rule for a role
type RolePolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// AdminRolesRequest full role set of an admin
type AdminRolesRequest struct {
	Roles []string `json:"roles"`
}

// GetRoles registered roles
func (h *Handler) GetRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondWithMappedError(c, err, authzAdminErrorRules, response.CodeInternal, "failed to load roles")
		return
	}
	response.Success(c, roles)
}

// GetRolePolicies direct policies of a role
func (h *Handler) GetRolePolicies(c *gin.Context) {
	policies, err := h.AuthzService.GetRolePolicies(c.Param("role"))
	if err != nil {
		respondWithMappedError(c, err, authzAdminErrorRules, response.CodeInternal, "failed to load role policies")
		return
	}
	response.Success(c, policies)
}

// GrantRolePolicy adds an allow rule, creating the role when new
func (h *Handler) GrantRolePolicy(c *gin.Context) {
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "object and action are required", nil)
		return
	}
	role := c.Param("role")
	if err := h.AuthzService.GrantRolePolicy(role, req.Object, req.Action); err != nil {
		respondWithMappedError(c, err, authzAdminErrorRules, response.CodeInternal, "failed to grant policy")
		return
	}
	requestLog(c).Infow("admin_role_policy_granted", "role", role, "object", req.Object, "action", req.Action)
	h.recordAuthzAudit(c, service.AuthzAuditRecordInput{
		Action: service.AuthzAuditActionGrantPolicy,
		Role:   role,
		Object: req.Object,
		Method: req.Action,
	})
	response.Success(c, nil)
}

// GetAdminRoles roles held by an admin
func (h *Handler) GetAdminRoles(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(id)
	if err != nil {
		respondWithMappedError(c, err, authzAdminErrorRules, response.CodeInternal, "failed to load admin roles")
		return
	}
	response.Success(c, roles)
}

// SetAdminRoles replaces an admin's roles
func (h *Handler) SetAdminRoles(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.AuthzService.SetAdminRoles(id, req.Roles); err != nil {
		respondWithMappedError(c, err, authzAdminErrorRules, response.CodeInternal, "failed to set admin roles")
		return
	}
	requestLog(c).Infow("admin_roles_updated", "target_admin_id", id, "roles", req.Roles)
	h.recordAuthzAudit(c, service.AuthzAuditRecordInput{
		Action:        service.AuthzAuditActionSetRoles,
		TargetAdminID: &id,
		Role:          strings.Join(req.Roles, ","),
		Detail:        models.JSON{"roles": req.Roles},
	})
	response.Success(c, nil)
}

// GetAuthzAuditLogs permission changes, newest first
func (h *Handler) GetAuthzAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.AuthzAuditLogListFilter{
		Page:     page,
		PageSize: pageSize,
		Action:   strings.TrimSpace(c.Query("action")),
		Role:     strings.TrimSpace(c.Query("role")),
	}
	for key, dest := range map[string]*uint{
		"operator_admin_id": &filter.OperatorAdminID,
		"target_admin_id":   &filter.TargetAdminID,
	} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, key+" is invalid", nil)
			return
		}
		*dest = uint(parsed)
	}
	logs, total, err := h.AuthzAuditService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load audit logs", err)
		return
	}
	response.SuccessWithPage(c, logs, response.NewPagination(page, pageSize, total))
}

// recordAuthzAudit failures are logged, never surfaced
func (h *Handler) recordAuthzAudit(c *gin.Context, input service.AuthzAuditRecordInput) {
	input.OperatorAdminID = c.GetUint(handlershared.ContextKeyAdminID)
	input.OperatorUsername = c.GetString(handlershared.ContextKeyUsername)
	input.RequestID = c.GetString(handlershared.ContextKeyRequestID)
	if err := h.AuthzAuditService.Record(input); err != nil {
		requestLog(c).Warnw("admin_authz_audit_record_failed", "action", input.Action, "error", err)
	}
}
