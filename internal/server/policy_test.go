package server

import (
	"testing"

	"github.com/npezzotti/go-supportchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizeEdit(t *testing.T) {
	customer := Actor{Id: customerUser.Id}
	admin := Actor{Id: adminUser.Id, IsAdmin: true}

	textFrom := func(sender int, flags types.MessageFlags) types.Message {
		return types.Message{Id: 7, SenderId: sender, Type: types.MessageTypeText, MessageFlags: flags}
	}

	tcases := []struct {
		name   string
		msg    types.Message
		actor  Actor
		opts   PolicyOptions
		expErr error
	}{
		{
			name:  "author edits unread message",
			msg:   textFrom(customer.Id, types.MessageFlags{}),
			actor: customer,
		},
		{
			name:   "customer cannot edit read message",
			msg:    textFrom(customer.Id, types.MessageFlags{Read: true}),
			actor:  customer,
			expErr: ErrReadLocked,
		},
		{
			name:  "admin edits own read message",
			msg:   textFrom(admin.Id, types.MessageFlags{Read: true}),
			actor: admin,
		},
		{
			name:   "admin cannot edit customer message",
			msg:    textFrom(customer.Id, types.MessageFlags{}),
			actor:  admin,
			expErr: ErrUnauthorized,
		},
		{
			name:   "non author rejected before read lock",
			msg:    textFrom(admin.Id, types.MessageFlags{Read: true}),
			actor:  customer,
			expErr: ErrUnauthorized,
		},
		{
			name:  "deleted message editable by default",
			msg:   textFrom(customer.Id, types.MessageFlags{Deleted: true}),
			actor: customer,
		},
		{
			name:   "deleted message locked when configured",
			msg:    textFrom(customer.Id, types.MessageFlags{Deleted: true}),
			actor:  customer,
			opts:   PolicyOptions{LockDeleted: true},
			expErr: ErrMessageDeleted,
		},
		{
			name:  "author edits unread image message",
			msg:   types.Message{Id: 7, SenderId: customer.Id, Type: types.MessageTypeImage},
			actor: customer,
		},
		{
			name:  "admin edits own read image message",
			msg:   types.Message{Id: 7, SenderId: admin.Id, Type: types.MessageTypeImage, MessageFlags: types.MessageFlags{Read: true}},
			actor: admin,
		},
		{
			name:   "customer cannot edit read image message",
			msg:    types.Message{Id: 7, SenderId: customer.Id, Type: types.MessageTypeImage, MessageFlags: types.MessageFlags{Read: true}},
			actor:  customer,
			expErr: ErrReadLocked,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeEdit(tc.msg, tc.actor, tc.opts)
			if tc.expErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expErr)
			}
		})
	}
}

func TestAuthorizeDelete(t *testing.T) {
	customer := Actor{Id: customerUser.Id}
	admin := Actor{Id: adminUser.Id, IsAdmin: true}

	tcases := []struct {
		name   string
		msg    types.Message
		actor  Actor
		expErr error
	}{
		{
			name:  "author deletes unread message",
			msg:   types.Message{SenderId: customer.Id},
			actor: customer,
		},
		{
			name:  "admin deletes customer message",
			msg:   types.Message{SenderId: customer.Id},
			actor: admin,
		},
		{
			name:   "customer cannot delete admin message",
			msg:    types.Message{SenderId: admin.Id},
			actor:  customer,
			expErr: ErrUnauthorized,
		},
		{
			name:   "author cannot delete read message",
			msg:    types.Message{SenderId: customer.Id, MessageFlags: types.MessageFlags{Read: true}},
			actor:  customer,
			expErr: ErrReadLocked,
		},
		{
			name:   "admin cannot delete read message",
			msg:    types.Message{SenderId: admin.Id, MessageFlags: types.MessageFlags{Read: true}},
			actor:  admin,
			expErr: ErrReadLocked,
		},
		{
			name:  "already deleted message can be deleted again",
			msg:   types.Message{SenderId: customer.Id, MessageFlags: types.MessageFlags{Deleted: true}},
			actor: customer,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeDelete(tc.msg, tc.actor)
			if tc.expErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expErr)
			}
		})
	}
}

// Every flag combination of a read message refuses deletion to every actor
// allowed to delete it at all.
func TestAuthorizeDeleteReadAlwaysLocked(t *testing.T) {
	actors := []Actor{{Id: customerUser.Id}, {Id: adminUser.Id, IsAdmin: true}}

	for _, edited := range []bool{false, true} {
		for _, deleted := range []bool{false, true} {
			for _, actor := range actors {
				msg := types.Message{
					SenderId:     customerUser.Id,
					Type:         types.MessageTypeText,
					MessageFlags: types.MessageFlags{Edited: edited, Deleted: deleted, Read: true},
				}
				assert.ErrorIs(t, AuthorizeDelete(msg, actor), ErrReadLocked,
					"edited=%t deleted=%t actor=%d", edited, deleted, actor.Id)
			}
		}
	}
}

// A read message stays editable by the admin author for every flag
// combination, and never by a customer author.
func TestAuthorizeEditReadMessages(t *testing.T) {
	for _, msgType := range []types.MessageType{types.MessageTypeText, types.MessageTypeImage} {
		for _, edited := range []bool{false, true} {
			for _, deleted := range []bool{false, true} {
				flags := types.MessageFlags{Edited: edited, Deleted: deleted, Read: true}

				adminMsg := types.Message{SenderId: adminUser.Id, Type: msgType, MessageFlags: flags}
				assert.NoError(t, AuthorizeEdit(adminMsg, Actor{Id: adminUser.Id, IsAdmin: true}, PolicyOptions{}),
					"type=%s edited=%t deleted=%t", msgType, edited, deleted)

				customerMsg := types.Message{SenderId: customerUser.Id, Type: msgType, MessageFlags: flags}
				assert.ErrorIs(t, AuthorizeEdit(customerMsg, Actor{Id: customerUser.Id}, PolicyOptions{}), ErrReadLocked,
					"type=%s edited=%t deleted=%t", msgType, edited, deleted)
			}
		}
	}
}
