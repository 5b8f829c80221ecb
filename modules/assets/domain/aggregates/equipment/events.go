package equipment

type CreatedEvent struct {
	Result Asset
}

type UpdatedEvent struct {
	Result Asset
}

type AssignedEvent struct {
	Result Asset
}

type ReleasedEvent struct {
	Result Asset
}

type RetiredEvent struct {
	Result Asset
}
