package controllers

import (
	"context"

	"depotbook/src/models"
	"depotbook/src/schemas"
	"depotbook/src/services"
	"depotbook/src/utils"
)

func (c *Controller) CreateUser(ctx context.Context, principal services.Principal, req schemas.UserRequest) (*models.User, error) {
	return c.AuthService.AddUser(ctx, principal, req.Username, req.Password)
}

func (c *Controller) CreateDepot(ctx context.Context, principal services.Principal, req schemas.DepotRequest) (*models.Depot, error) {
	return c.AuthService.AddDepot(ctx, principal, req.Broker, req.ExternalID, req.Currency)
}

func (c *Controller) GrantPermission(ctx context.Context, principal services.Principal, broker, externalID string, req schemas.PermissionRequest) (*schemas.PermissionResponse, error) {
	flags, err := parsePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	perm, err := c.AuthService.GrantPermission(ctx, principal, broker, externalID, req.Username, flags)
	if err != nil {
		return nil, err
	}
	return &schemas.PermissionResponse{
		Username:    req.Username,
		Broker:      broker,
		ExternalID:  externalID,
		Permissions: perm.Flags.Names(),
	}, nil
}

func (c *Controller) RevokePermission(ctx context.Context, principal services.Principal, broker, externalID string, req schemas.PermissionRequest) error {
	flags, err := parsePermissions(req.Permissions)
	if err != nil {
		return err
	}
	return c.AuthService.RevokePermission(ctx, principal, broker, externalID, req.Username, flags)
}

func parsePermissions(names []string) (models.PermissionFlags, error) {
	if len(names) == 0 {
		return 0, utils.ValidationError("permissions are required")
	}
	flags, err := models.ParsePermissionFlags(names)
	if err != nil {
		return 0, utils.ValidationError("%v", err)
	}
	return flags, nil
}

func (c *Controller) CreateInstrument(ctx context.Context, principal services.Principal, req schemas.InstrumentRequest) (*models.Instrument, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	return c.CatalogService.GetOrCreateInstrument(ctx, nil, req.ISIN, req.Name, req.Currency)
}

func (c *Controller) PutSymbol(ctx context.Context, principal services.Principal, input services.SymbolInput) (*models.Symbol, error) {
	return c.CatalogService.AddOrUpdateSymbol(ctx, principal, input)
}
