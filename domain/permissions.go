package domain

// ProjectPermissions describes what a user may do within a project. Derived
// from the user's project role, team role and ownership.
type ProjectPermissions struct {
	CanViewProject   bool
	CanEditProject   bool
	CanDeleteProject bool
	CanManageTasks   bool
	CanCreateTasks   bool
	CanAssignTasks   bool
	CanManageMembers bool
}

// TeamRoleOf returns the user's role within the team, or "" for non-members.
func TeamRoleOf(userID string, team *Team) TeamRole {
	if team == nil {
		return ""
	}
	if team.OwnerID == userID {
		return TeamRoleOwner
	}
	if role, ok := team.MemberRoles[userID]; ok {
		return role
	}
	for _, id := range team.MemberIDs {
		if id == userID {
			return TeamRoleMember
		}
	}
	return ""
}

// ProjectRoleOf returns the user's role within the project, or "" for
// non-members. Ownership is handled separately by PermissionsFor.
func ProjectRoleOf(userID string, p *Project) ProjectRole {
	if p.OwnerID == userID {
		return ""
	}
	if role, ok := p.MemberRoles[userID]; ok {
		return role
	}
	for _, id := range p.MemberIDs {
		if id == userID {
			return ProjectRoleMember
		}
	}
	return ""
}

// PermissionsFor derives project permissions from the user's roles. Owners
// and team owners get everything; team and project managers can manage
// tasks; project members can only create them.
func PermissionsFor(projectRole ProjectRole, teamRole TeamRole, isProjectOwner bool) ProjectPermissions {
	if isProjectOwner || teamRole == TeamRoleOwner {
		return ProjectPermissions{
			CanViewProject:   true,
			CanEditProject:   true,
			CanDeleteProject: true,
			CanManageTasks:   true,
			CanCreateTasks:   true,
			CanAssignTasks:   true,
			CanManageMembers: true,
		}
	}
	if teamRole == TeamRoleManager {
		return ProjectPermissions{
			CanViewProject: true,
			CanEditProject: true,
			CanManageTasks: true,
			CanCreateTasks: true,
			CanAssignTasks: true,
		}
	}
	if projectRole == ProjectRoleManager {
		return ProjectPermissions{
			CanViewProject: true,
			CanManageTasks: true,
			CanCreateTasks: true,
			CanAssignTasks: true,
		}
	}
	if projectRole == ProjectRoleMember {
		return ProjectPermissions{
			CanViewProject: true,
			CanCreateTasks: true,
		}
	}
	return ProjectPermissions{}
}

// TeamPermissions describes what a user may do within a team.
type TeamPermissions struct {
	CanCreateProject bool
	CanManageTeam    bool
	CanInviteMembers bool
	CanRemoveMembers bool
	CanDeleteTeam    bool
	CanViewTeam      bool
}

// TeamPermissionsFor derives team permissions from the user's team role.
func TeamPermissionsFor(role TeamRole) TeamPermissions {
	switch role {
	case TeamRoleOwner:
		return TeamPermissions{
			CanCreateProject: true,
			CanManageTeam:    true,
			CanInviteMembers: true,
			CanRemoveMembers: true,
			CanDeleteTeam:    true,
			CanViewTeam:      true,
		}
	case TeamRoleManager:
		return TeamPermissions{
			CanCreateProject: true,
			CanManageTeam:    true,
			CanInviteMembers: true,
			CanViewTeam:      true,
		}
	case TeamRoleMember:
		return TeamPermissions{CanViewTeam: true}
	default:
		return TeamPermissions{}
	}
}

// GuardProjectCreation fails unless the user may create projects in the
// team.
func GuardProjectCreation(userID string, team *Team) error {
	if !TeamPermissionsFor(TeamRoleOf(userID, team)).CanCreateProject {
		return &AuthorizationError{
			Code:    "PROJECT_CREATION_DENIED",
			Message: "user must be a team owner or manager to create projects",
		}
	}
	return nil
}

// permissionsOf resolves the full permission set for a user on a project,
// consulting the owning team when present.
func permissionsOf(userID string, p *Project, team *Team) ProjectPermissions {
	var teamRole TeamRole
	if team != nil && p.TeamID == team.ID {
		teamRole = TeamRoleOf(userID, team)
	}
	return PermissionsFor(ProjectRoleOf(userID, p), teamRole, p.OwnerID == userID)
}

// GuardProjectAccess fails unless the user may view the project.
func GuardProjectAccess(userID string, p *Project, team *Team) error {
	if !permissionsOf(userID, p, team).CanViewProject {
		return &AuthorizationError{
			Code:    "PROJECT_ACCESS_DENIED",
			Message: "user does not have permission to access this project",
		}
	}
	return nil
}

// GuardTaskManagement fails unless the user may reorder, edit or delete
// tasks in the project.
func GuardTaskManagement(userID string, p *Project, team *Team) error {
	if !permissionsOf(userID, p, team).CanManageTasks {
		return &AuthorizationError{
			Code:    "TASK_MANAGEMENT_DENIED",
			Message: "user does not have permission to manage tasks in this project",
		}
	}
	return nil
}

// GuardTaskCreation fails unless the user may add tasks to the project.
func GuardTaskCreation(userID string, p *Project, team *Team) error {
	if !permissionsOf(userID, p, team).CanCreateTasks {
		return &AuthorizationError{
			Code:    "TASK_CREATION_DENIED",
			Message: "user does not have permission to create tasks in this project",
		}
	}
	return nil
}
