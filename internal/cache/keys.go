package cache

import "fmt"

// Key families, namespaced prefix:kind:tenant:rest. Pattern helpers
// exist for the bulk-invalidation cases (all sessions of a tenant, all
// cached profiles of a user).

func (c *Cache) ConversationKey(tenantID, low, high string) string {
	return fmt.Sprintf("%s:conv:%s:%s:%s", c.prefix, tenantID, low, high)
}

func (c *Cache) ConversationListKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:convlist:%s:%s", c.prefix, tenantID, userID)
}

func (c *Cache) ProfileKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:profile:%s:%s", c.prefix, tenantID, userID)
}

func (c *Cache) ProfilePattern(tenantID, userID string) string {
	return fmt.Sprintf("%s:profile:%s:%s*", c.prefix, tenantID, userID)
}

func (c *Cache) SessionKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:session:%s:%s", c.prefix, tenantID, userID)
}

func (c *Cache) SessionPattern(tenantID string) string {
	return fmt.Sprintf("%s:session:%s:*", c.prefix, tenantID)
}
