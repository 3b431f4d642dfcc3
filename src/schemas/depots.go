package schemas

type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DepotRequest struct {
	Broker     string `json:"broker"`
	ExternalID string `json:"external_id"`
	Currency   string `json:"ccy"`
}

// PermissionRequest names the grantee and the permissions to add or remove,
// e.g. ["read", "write"].
type PermissionRequest struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

type PermissionResponse struct {
	Username    string   `json:"username"`
	Broker      string   `json:"broker"`
	ExternalID  string   `json:"external_id"`
	Permissions []string `json:"permissions"`
}

type InstrumentRequest struct {
	ISIN     string `json:"isin"`
	Name     string `json:"name"`
	Currency string `json:"ccy"`
}
