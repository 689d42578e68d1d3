package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Mock upstream for integration tests. Serves the Montreal planif-neige
// batch feed, the Quebec ArcGIS signal query and a tiny geobase CSV export.
// Control endpoints let tests change states and simulate outages, since the
// real feeds carry no per-request selector to hang magic values on.

type planification struct {
	CoteRueID int     `json:"coteRueId"`
	Etat      string  `json:"etat"`
	DateDebut *string `json:"dateDebut,omitempty"`
	DateFin   *string `json:"dateFin,omitempty"`
}

type state struct {
	sync.Mutex
	etats        map[int]string
	quebecStatut string
	outage       bool
}

var current = &state{
	etats: map[int]string{
		123401: "planifie",
		123402: "deneige",
	},
	quebecStatut: "En fonction",
}

const geobaseCSV = `COTE_RUE_ID,NOM_VOIE,TYPE_F,DEBUT_ADRESSE,FIN_ADRESSE,COTE,NOM_VILLE
123401,avenue du Parc,Avenue,5401,5499,Impair,Montréal
123402,avenue du Parc,Avenue,5400,5498,Pair,Montréal
200301,rue Saint-Denis,Rue,4001,4099,Impair,Montréal
`

func main() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/infoneige/planifications", func(c *gin.Context) {
		current.Lock()
		defer current.Unlock()

		if current.outage {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "service indisponible"})
			return
		}

		if c.Query("date") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date parameter required"})
			return
		}

		windowStart := time.Now().Add(2 * time.Hour).Format(time.RFC3339)
		windowEnd := time.Now().Add(8 * time.Hour).Format(time.RFC3339)

		planifications := make([]planification, 0, len(current.etats))
		for id, etat := range current.etats {
			item := planification{CoteRueID: id, Etat: etat}
			if etat == "planifie" || etat == "replanifie" || etat == "en_cours" {
				item.DateDebut = &windowStart
				item.DateFin = &windowEnd
			}
			planifications = append(planifications, item)
		}

		c.JSON(http.StatusOK, gin.H{"planifications": planifications})
	})

	r.GET("/arcgis/query", func(c *gin.Context) {
		current.Lock()
		defer current.Unlock()

		if current.outage {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "service unavailable"})
			return
		}

		if c.Query("geometry") == "" {
			// the real service reports failures in-band with a 200 status
			c.JSON(http.StatusOK, gin.H{"error": gin.H{"message": "geometry parameter required"}})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"features": []gin.H{
				{"attributes": gin.H{"STATUT": current.quebecStatut, "NO_FEU": "F-1021"}},
			},
		})
	})

	r.GET("/geobase.csv", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/csv", []byte(geobaseCSV))
	})

	r.POST("/control/etat", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Query("coteRueId"))
		if err != nil || c.Query("etat") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coteRueId and etat parameters required"})
			return
		}

		current.Lock()
		current.etats[id] = c.Query("etat")
		current.Unlock()

		c.JSON(http.StatusOK, gin.H{"coteRueId": id, "etat": c.Query("etat")})
	})

	r.POST("/control/statut", func(c *gin.Context) {
		value := c.Query("value")
		if value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value parameter required"})
			return
		}

		current.Lock()
		current.quebecStatut = value
		current.Unlock()

		c.JSON(http.StatusOK, gin.H{"statut": value})
	})

	r.POST("/control/outage", func(c *gin.Context) {
		on := c.Query("on") == "1" || c.Query("on") == "true"

		current.Lock()
		current.outage = on
		current.Unlock()

		c.JSON(http.StatusOK, gin.H{"outage": on})
	})

	slog.Info("Mock status server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
