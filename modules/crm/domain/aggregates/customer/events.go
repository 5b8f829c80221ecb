package customer

type CreatedEvent struct {
	Result Customer
}

type UpdatedEvent struct {
	Result Customer
}

type DeletedEvent struct {
	Result Customer
}
