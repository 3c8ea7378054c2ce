package domain

import (
	"fmt"
	"strings"
)

// Topic is a routing key of the form <kind>:<id>. It is never persisted.
type Topic string

type TopicKind string

const (
	TopicUser     TopicKind = "user"
	TopicRole     TopicKind = "role"
	TopicProduct  TopicKind = "product"
	TopicCategory TopicKind = "category"
	TopicOrder    TopicKind = "order"
)

func UserTopic(userID string) Topic         { return newTopic(TopicUser, userID) }
func RoleTopic(role string) Topic           { return newTopic(TopicRole, role) }
func ProductTopic(productID string) Topic   { return newTopic(TopicProduct, productID) }
func CategoryTopic(categoryID string) Topic { return newTopic(TopicCategory, categoryID) }
func OrderTopic(orderID string) Topic       { return newTopic(TopicOrder, orderID) }

func newTopic(kind TopicKind, id string) Topic {
	return Topic(string(kind) + ":" + id)
}

// ParseTopic validates name and splits it into kind and id.
func ParseTopic(name string) (TopicKind, string, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(name), ":")
	if !ok || id == "" || strings.ContainsAny(id, " :") {
		return "", "", fmt.Errorf("malformed topic %q: %w", name, ErrBadRequest)
	}
	switch k := TopicKind(kind); k {
	case TopicUser, TopicRole, TopicProduct, TopicCategory, TopicOrder:
		return k, id, nil
	default:
		return "", "", fmt.Errorf("unknown topic kind %q: %w", kind, ErrBadRequest)
	}
}

// Public reports whether anonymous connections may join topics of this kind.
func (k TopicKind) Public() bool {
	return k == TopicProduct || k == TopicCategory
}
