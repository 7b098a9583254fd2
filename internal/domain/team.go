package domain

import "time"

// TeamRole is a member's role inside a team.
type TeamRole string

const (
	TeamRoleMember TeamRole = "member"
	TeamRoleLeader TeamRole = "leader"
)

// Team groups agents that share a queue.
type Team struct {
	ID        string
	Name      string
	LeaderID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMember is a membership row.
type TeamMember struct {
	TeamID   string
	UserID   string
	Role     TeamRole
	JoinedAt time.Time
}
