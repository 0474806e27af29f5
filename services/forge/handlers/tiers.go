// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleeco/siteforge/services/forge/tiers"
)

// SuggestRequest carries a business classification for tier
// suggestion. Both fields are optional; an empty request yields the
// default tier.
type SuggestRequest struct {
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

// HandleListTiers returns the tier configuration: bundles, module
// display metadata, and tier ordering.
func HandleListTiers(engine *tiers.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Config())
	}
}

// HandleSuggestTier maps an industry and free-text description to a
// suggested admin tier.
func HandleSuggestTier(engine *tiers.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SuggestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, engine.Suggest(req.Industry, req.Description))
	}
}
