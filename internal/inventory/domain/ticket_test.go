package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	orderdom "github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
)

func TestTicketIsAvailable(t *testing.T) {
	holder := int64(9)
	unheld := Ticket{ID: 1, TicketTypeID: 1}
	held := Ticket{ID: 2, TicketTypeID: 1, OrderID: &holder}

	assert.True(t, unheld.IsAvailable(""))
	assert.True(t, held.IsAvailable(orderdom.StateCancelled))
	assert.False(t, held.IsAvailable(orderdom.StateFulfilled))
	assert.False(t, held.IsAvailable(orderdom.StateCreated))
}

func TestNewTicketType(t *testing.T) {
	tt, err := NewTicketType(1, "Early Bird", 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, tt.Quantity)

	_, err = NewTicketType(1, "", 5)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = NewTicketType(1, "Night Owl", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
