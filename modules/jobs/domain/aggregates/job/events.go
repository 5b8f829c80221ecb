package job

type CreatedEvent struct {
	Result Job
}

type UpdatedEvent struct {
	Result Job
}

type StatusChangedEvent struct {
	From   Status
	To     Status
	Result Job
}

type DeletedEvent struct {
	Result Job
}
