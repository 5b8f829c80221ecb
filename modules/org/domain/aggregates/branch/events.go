package branch

type CreatedEvent struct {
	Result Branch
}

type DeletedEvent struct {
	Result Branch
}

type UserAssignedEvent struct {
	Result Assignment
}

type PrimaryChangedEvent struct {
	Result Assignment
}
