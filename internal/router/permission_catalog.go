package router

import (
	"sort"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/authz"

	"github.com/gin-gonic/gin"
)

const adminRoutePrefix = "/api/v1/admin/"

// adminPermissionCatalogItem 管理端接口权限项，Roles 为可访问该接口的预置角色
type adminPermissionCatalogItem struct {
	Module     string   `json:"module"`
	Method     string   `json:"method"`
	Object     string   `json:"object"`
	Permission string   `json:"permission"`
	Roles      []string `json:"roles"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	items := []adminPermissionCatalogItem{}
	if engine == nil {
		return items
	}

	grants := builtinRoleGrants()
	seen := map[string]bool{}
	for _, route := range engine.Routes() {
		if !strings.HasPrefix(route.Path, adminRoutePrefix) {
			continue
		}
		method := authz.NormalizeAction(route.Method)
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		object := authz.NormalizeObject(route.Path)
		permission := method + ":" + object
		if seen[permission] {
			continue
		}
		seen[permission] = true
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
			Roles:      grants[permission],
		})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Method < b.Method
	})
	return items
}

// builtinRoleGrants 展开角色继承，返回 permission -> 角色列表
func builtinRoleGrants() map[string][]string {
	seeds := authz.BuiltinRoleSeeds()
	own := make(map[string][]authz.Policy, len(seeds))
	parents := make(map[string][]string, len(seeds))
	for _, seed := range seeds {
		own[seed.Role] = seed.Policies
		parents[seed.Role] = seed.Inherits
	}

	grants := map[string][]string{}
	for _, seed := range seeds {
		visited := map[string]bool{}
		stack := []string{seed.Role}
		for len(stack) > 0 {
			role := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[role] {
				continue
			}
			visited[role] = true
			for _, policy := range own[role] {
				permission := authz.NormalizeAction(policy.Action) + ":" + authz.NormalizeObject(policy.Object)
				grants[permission] = appendUnique(grants[permission], seed.Role)
			}
			stack = append(stack, parents[role]...)
		}
	}
	for permission := range grants {
		sort.Strings(grants[permission])
	}
	return grants
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// deriveAdminPermissionModule /admin/<module>/... 取 module，非 admin 对象取首段
func deriveAdminPermissionModule(object string) string {
	segments := strings.Split(strings.Trim(object, "/"), "/")
	switch {
	case segments[0] == "":
		return "system"
	case segments[0] == "admin" && len(segments) > 1:
		return segments[1]
	default:
		return segments[0]
	}
}
