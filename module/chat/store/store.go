// Package store is the Mongo persistence for conversations and messages.
package store

import (
	"connectify/service/mgo"
)

func mapErr(err error, op string) error { return mgo.MapErr(err, op) }
