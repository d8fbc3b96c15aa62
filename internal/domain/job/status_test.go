package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainShapes(t *testing.T) {
	delivery := Chain(KindDelivery, PaymentPrepaid)
	require.Len(t, delivery, 8)
	assert.Equal(t, StatusPending, delivery[0])
	assert.Equal(t, StatusCompleted, delivery[len(delivery)-1])

	ride := Chain(KindRide, PaymentPrepaid)
	require.Len(t, ride, 4)
	assert.Equal(t, []Status{StatusPending, StatusAssigned, StatusStarted, StatusCompleted}, ride)

	// cash appends PAID at the end of either chain
	cashDelivery := Chain(KindDelivery, PaymentCashOnCompletion)
	require.Len(t, cashDelivery, 9)
	assert.Equal(t, StatusPaid, cashDelivery[len(cashDelivery)-1])

	cashRide := Chain(KindRide, PaymentCashOnCompletion)
	assert.Equal(t, StatusPaid, cashRide[len(cashRide)-1])
}

func TestSuccessorWalksTheFullChain(t *testing.T) {
	chain := Chain(KindDelivery, PaymentCashOnCompletion)
	for i := 0; i < len(chain)-1; i++ {
		next, ok := Successor(chain[i], KindDelivery, PaymentCashOnCompletion)
		require.True(t, ok, "expected a successor after %s", chain[i])
		assert.Equal(t, chain[i+1], next)
	}

	_, ok := Successor(StatusPaid, KindDelivery, PaymentCashOnCompletion)
	assert.False(t, ok, "PAID must not have a successor")
}

func TestSuccessorRejectsForeignStatus(t *testing.T) {
	// STARTED belongs to the ride chain only
	_, ok := Successor(StatusStarted, KindDelivery, PaymentPrepaid)
	assert.False(t, ok)

	_, ok = Successor(StatusPickedUp, KindRide, PaymentPrepaid)
	assert.False(t, ok)
}

func TestCanTransitionToNoSkippingNoReversing(t *testing.T) {
	assert.True(t, StatusAssigned.CanTransitionTo(StatusEnRouteToOrigin, KindDelivery, PaymentPrepaid))

	// skipping a milestone
	assert.False(t, StatusAssigned.CanTransitionTo(StatusArrivedAtOrigin, KindDelivery, PaymentPrepaid))
	assert.False(t, StatusAssigned.CanTransitionTo(StatusCompleted, KindDelivery, PaymentPrepaid))

	// going back
	assert.False(t, StatusPickedUp.CanTransitionTo(StatusArrivedAtOrigin, KindDelivery, PaymentPrepaid))

	// staying put
	assert.False(t, StatusAssigned.CanTransitionTo(StatusAssigned, KindDelivery, PaymentPrepaid))
}

func TestCancelAllowedFromAnyNonTerminalStatus(t *testing.T) {
	for _, status := range Chain(KindDelivery, PaymentCashOnCompletion) {
		if status.Terminal(PaymentCashOnCompletion) {
			continue
		}
		assert.True(t, status.CanTransitionTo(StatusCancelled, KindDelivery, PaymentCashOnCompletion),
			"cancel should be legal from %s", status)
	}

	assert.False(t, StatusPaid.CanTransitionTo(StatusCancelled, KindDelivery, PaymentCashOnCompletion))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusCancelled, KindDelivery, PaymentPrepaid))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusCancelled, KindDelivery, PaymentPrepaid))
}

func TestTerminalDependsOnPaymentMode(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal(PaymentPrepaid))
	assert.False(t, StatusCompleted.Terminal(PaymentCashOnCompletion),
		"cash job still owes the PAID settlement after COMPLETED")

	assert.True(t, StatusPaid.Terminal(PaymentCashOnCompletion))
	assert.True(t, StatusCancelled.Terminal(PaymentPrepaid))
	assert.False(t, StatusPending.Terminal(PaymentPrepaid))
}

func TestCashJobCompletedStillOccupiesWorker(t *testing.T) {
	assert.True(t, StatusCompleted.Active(PaymentCashOnCompletion))
	assert.False(t, StatusCompleted.Active(PaymentPrepaid))
	assert.False(t, StatusPending.Active(PaymentPrepaid))
	assert.True(t, StatusEnRouteToOrigin.Active(PaymentPrepaid))
}

func TestParseStatusNormalizes(t *testing.T) {
	status, err := ParseStatus("  picked_up ")
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, status)

	_, err = ParseStatus("TELEPORTED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
