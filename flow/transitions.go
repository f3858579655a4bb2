package flow

import (
	"fmt"

	"hostel-market/session"
)

const (
	StepAddName      session.Step = "add.name"
	StepAddOrigPrice session.Step = "add.orig_price"
	StepAddPrice     session.Step = "add.price"
	StepAddPayment   session.Step = "add.payment"
	StepAddLocation  session.Step = "add.location"
	StepAddStock     session.Step = "add.stock"
	StepAddImage     session.Step = "add.image"

	StepDelSelect  session.Step = "del.select"
	StepDelConfirm session.Step = "del.confirm"

	StepProfitSelect session.Step = "profit.select"
	StepProfitAmount session.Step = "profit.amount"

	StepOrderSelect     session.Step = "order.select"
	StepOrderQty        session.Step = "order.qty"
	StepOrderName       session.Step = "order.name"
	StepOrderPhone      session.Step = "order.phone"
	StepOrderRoom       session.Step = "order.room"
	StepOrderAddress    session.Step = "order.address"
	StepOrderNewAddress session.Step = "order.new_address"
	StepOrderPayment    session.Step = "order.payment"

	StepCancelSelect  session.Step = "acancel.select"
	StepCancelReason  session.Step = "acancel.reason"
	StepCancelConfirm session.Step = "acancel.confirm"

	StepAddressEnter session.Step = "addr.enter"

	// StepDone is the terminal pseudo-step; reaching it deletes the session.
	StepDone session.Step = "done"
)

type transition struct {
	Flow session.FlowKind
	From session.Step
	Kind InputKind
	To   session.Step
}

// transitions is the complete set of legal moves. The kernel refuses any
// advance that is not listed here.
var transitions = []transition{
	{session.FlowAddProduct, StepAddName, KindText, StepAddOrigPrice},
	{session.FlowAddProduct, StepAddOrigPrice, KindText, StepAddPrice},
	{session.FlowAddProduct, StepAddPrice, KindText, StepAddStock},
	{session.FlowAddProduct, StepAddPrice, KindText, StepAddPayment},
	{session.FlowAddProduct, StepAddPayment, KindText, StepAddLocation},
	{session.FlowAddProduct, StepAddLocation, KindText, StepAddStock},
	{session.FlowAddProduct, StepAddStock, KindText, StepAddImage},
	{session.FlowAddProduct, StepAddImage, KindImage, StepDone},
	{session.FlowAddProduct, StepAddImage, KindSkip, StepDone},

	{session.FlowDeleteProduct, StepDelSelect, KindCallback, StepDelConfirm},
	{session.FlowDeleteProduct, StepDelConfirm, KindCallback, StepDone},

	{session.FlowSetProfit, StepProfitSelect, KindCallback, StepProfitAmount},
	{session.FlowSetProfit, StepProfitAmount, KindText, StepDone},

	{session.FlowPlaceOrder, StepOrderSelect, KindCallback, StepOrderQty},
	{session.FlowPlaceOrder, StepOrderQty, KindText, StepOrderName},
	{session.FlowPlaceOrder, StepOrderQty, KindText, StepOrderAddress},
	{session.FlowPlaceOrder, StepOrderQty, KindText, StepOrderNewAddress},
	{session.FlowPlaceOrder, StepOrderName, KindText, StepOrderPhone},
	{session.FlowPlaceOrder, StepOrderPhone, KindText, StepOrderRoom},
	{session.FlowPlaceOrder, StepOrderRoom, KindText, StepDone},
	{session.FlowPlaceOrder, StepOrderAddress, KindCallback, StepOrderPayment},
	{session.FlowPlaceOrder, StepOrderAddress, KindCallback, StepOrderNewAddress},
	{session.FlowPlaceOrder, StepOrderNewAddress, KindText, StepOrderPayment},
	{session.FlowPlaceOrder, StepOrderPayment, KindCallback, StepDone},

	{session.FlowCancelOrderAdmin, StepCancelSelect, KindCallback, StepCancelReason},
	{session.FlowCancelOrderAdmin, StepCancelReason, KindText, StepCancelConfirm},
	{session.FlowCancelOrderAdmin, StepCancelReason, KindSkip, StepCancelConfirm},
	{session.FlowCancelOrderAdmin, StepCancelConfirm, KindCallback, StepDone},

	{session.FlowUpdateAddress, StepAddressEnter, KindText, StepDone},
}

// entrySteps are the steps a new session may start in.
var entrySteps = map[session.FlowKind][]session.Step{
	session.FlowAddProduct:       {StepAddName},
	session.FlowDeleteProduct:    {StepDelSelect, StepDelConfirm},
	session.FlowSetProfit:        {StepProfitSelect},
	session.FlowPlaceOrder:       {StepOrderSelect, StepOrderQty},
	session.FlowCancelOrderAdmin: {StepCancelSelect, StepCancelReason},
	session.FlowUpdateAddress:    {StepAddressEnter},
}

func allowed(flow session.FlowKind, from session.Step, kind InputKind, to session.Step) bool {
	for _, t := range transitions {
		if t.Flow == flow && t.From == from && t.Kind == kind && t.To == to {
			return true
		}
	}
	return false
}

func isEntry(flow session.FlowKind, step session.Step) bool {
	for _, s := range entrySteps[flow] {
		if s == step {
			return true
		}
	}
	return false
}

func checkTransition(s *session.Session, kind InputKind, to session.Step) error {
	if !allowed(s.Flow(), s.Step, kind, to) {
		return fmt.Errorf("flow %s: no transition %s --%s--> %s", s.Flow(), s.Step, kind, to)
	}
	return nil
}
