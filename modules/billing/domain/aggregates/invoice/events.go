package invoice

type CreatedEvent struct {
	Result Invoice
}

type UpdatedEvent struct {
	Result Invoice
}

type StatusChangedEvent struct {
	From   Status
	To     Status
	Result Invoice
}
