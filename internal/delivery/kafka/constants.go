package kafka

const (
	TopicEntryAdded    = "waitlist.entry_added"
	TopicStatusChanged = "waitlist.status_changed"
	TopicOfferCreated  = "waitlist.offer_created"

	TopicSlotReleased = "schedule.slot_released"
)
