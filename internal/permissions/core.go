package permissions

// Entities managed by the API itself.
const (
	EntityUser       = "user"
	EntityRole       = "role"
	EntityPermission = "permission"
	EntityToken      = "token"
	EntityAudit      = "audit"
)

func init() {
	registerCore()
}

func registerCore() {
	core := []Entity{
		{Name: EntityUser, Description: "User accounts"},
		{Name: EntityRole, Description: "Roles and their permission sets"},
		{Name: EntityPermission, Description: "Permission definitions"},
		{Name: EntityToken, Description: "Issued bearer tokens"},
		{Name: EntityAudit, Description: "Audit log entries"},
	}
	for _, entity := range core {
		if err := RegisterEntity(entity.Name, entity.Description); err != nil {
			panic(err)
		}
	}
}
