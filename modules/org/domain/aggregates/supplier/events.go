package supplier

type CreatedEvent struct {
	Result Supplier
}

type UpdatedEvent struct {
	Result Supplier
}

type DeletedEvent struct {
	Result Supplier
}
