package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/project"
)

const maxImageBytes = 10 << 20

// bindAndRun decodes a JSON body into In and writes the result of fn with
// the given status.
func bindAndRun[In any, Out any](log *zap.Logger, status int, fn func(c *gin.Context, in In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		out, err := fn(c, in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(status, out)
	}
}

// respond writes the result of a body-less call.
func respond[Out any](log *zap.Logger, fn func(c *gin.Context) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fn(c)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// createProjectHandler godoc
// @Summary      Create a construction project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      project.CreateProjectRequest  true  "Project"
// @Success      201   {object}  project.Project
// @Router       /projects [post]
func createProjectHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusCreated, func(c *gin.Context, in project.CreateProjectRequest) (*project.Project, error) {
		return svc.Create(c.Request.Context(), auth.PrincipalFrom(c), in)
	})
}

// listProjectsHandler godoc
// @Summary      List the caller's projects (all for admins)
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  project.Project
// @Router       /projects [get]
func listProjectsHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) ([]project.Project, error) {
		return svc.List(c.Request.Context(), auth.PrincipalFrom(c))
	})
}

// getProjectHandler godoc
// @Summary      Get project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  project.Project
// @Failure      403  {object}  apperr.Body
// @Failure      404  {object}  apperr.Body
// @Router       /projects/{id} [get]
func getProjectHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) (*project.Project, error) {
		return svc.Get(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

// updateProjectHandler godoc
// @Summary      Partially update project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                        true  "Project ID"
// @Param        body  body      project.UpdateProjectRequest  true  "Fields"
// @Success      200   {object}  project.Project
// @Router       /projects/{id} [put]
func updateProjectHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusOK, func(c *gin.Context, in project.UpdateProjectRequest) (*project.Project, error) {
		return svc.Update(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in)
	})
}

// deleteProjectHandler godoc
// @Summary      Delete project and everything recorded under it
// @Tags         projects
// @Security     BearerAuth
// @Param        id  path  string  true  "Project ID"
// @Success      204
// @Router       /projects/{id} [delete]
func deleteProjectHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id")); err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// projectSummaryHandler godoc
// @Summary      Completion and spending summary
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  project.Summary
// @Router       /projects/{id}/summary [get]
func projectSummaryHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) (*project.Summary, error) {
		return svc.Summary(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

// milestones godoc
// @Summary      List or add milestones
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                    true   "Project ID"
// @Param        body  body      project.MilestoneRequest  false  "Milestone"
// @Success      200   {array}   project.Milestone
// @Success      201   {object}  project.Milestone
// @Router       /projects/{id}/milestones [get]
// @Router       /projects/{id}/milestones [post]
func listMilestonesHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) ([]project.Milestone, error) {
		return svc.Milestones(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

func addMilestoneHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusCreated, func(c *gin.Context, in project.MilestoneRequest) (*project.Milestone, error) {
		return svc.AddMilestone(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in)
	})
}

// updateMilestoneHandler godoc
// @Summary      Update milestone
// @Description  Moving to completed stamps completed_at; leaving completed clears it.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                          true  "Project ID"
// @Param        mid   path      string                          true  "Milestone ID"
// @Param        body  body      project.UpdateMilestoneRequest  true  "Fields"
// @Success      200   {object}  project.Milestone
// @Router       /projects/{id}/milestones/{mid} [put]
func updateMilestoneHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusOK, func(c *gin.Context, in project.UpdateMilestoneRequest) (*project.Milestone, error) {
		return svc.UpdateMilestone(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), c.Param("mid"), in)
	})
}

// inventory godoc
// @Summary      List or add inventory items
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                    true   "Project ID"
// @Param        body  body      project.InventoryRequest  false  "Item"
// @Success      200   {array}   project.InventoryItem
// @Success      201   {object}  project.InventoryItem
// @Router       /projects/{id}/inventory [get]
// @Router       /projects/{id}/inventory [post]
func listInventoryHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) ([]project.InventoryItem, error) {
		return svc.Inventory(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

func addInventoryHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusCreated, func(c *gin.Context, in project.InventoryRequest) (*project.InventoryItem, error) {
		return svc.AddInventory(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in)
	})
}

// updateInventoryHandler godoc
// @Summary      Update inventory item
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                          true  "Project ID"
// @Param        iid   path      string                          true  "Item ID"
// @Param        body  body      project.UpdateInventoryRequest  true  "Fields"
// @Success      200   {object}  project.InventoryItem
// @Router       /projects/{id}/inventory/{iid} [put]
func updateInventoryHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusOK, func(c *gin.Context, in project.UpdateInventoryRequest) (*project.InventoryItem, error) {
		return svc.UpdateInventory(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), c.Param("iid"), in)
	})
}

// expenses godoc
// @Summary      List or record expenses
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                  true   "Project ID"
// @Param        body  body      project.ExpenseRequest  false  "Expense"
// @Success      200   {array}   project.Expense
// @Success      201   {object}  project.Expense
// @Router       /projects/{id}/expenses [get]
// @Router       /projects/{id}/expenses [post]
func listExpensesHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) ([]project.Expense, error) {
		return svc.Expenses(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

func addExpenseHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return bindAndRun(log, http.StatusCreated, func(c *gin.Context, in project.ExpenseRequest) (*project.Expense, error) {
		return svc.AddExpense(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in)
	})
}

// listImagesHandler godoc
// @Summary      List progress photos
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string  true  "Project ID"
// @Success      200  {array}  project.ProgressImage
// @Router       /projects/{id}/images [get]
func listImagesHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return respond(log, func(c *gin.Context) ([]project.ProgressImage, error) {
		return svc.Images(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	})
}

// uploadImageHandler godoc
// @Summary      Upload a progress photo
// @Tags         projects
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id            path      string  true   "Project ID"
// @Param        image         formData  file    true   "Image file"
// @Param        milestone_id  formData  string  false  "Milestone ID"
// @Param        description   formData  string  false  "Description"
// @Success      201  {object}  project.ProgressImage
// @Failure      400  {object}  apperr.Body
// @Router       /projects/{id}/images [post]
func uploadImageHandler(svc *project.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.PrincipalFrom(c)
		if err := svc.CanAddImage(c.Request.Context(), p, c.Param("id")); err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)
		fh, err := c.FormFile("image")
		if err != nil {
			httpx.Error(c, log, apperr.Validation("image file is required (max 10MB)"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			httpx.Error(c, log, apperr.Internal(err))
			return
		}
		defer f.Close()

		img, err := svc.AddImage(c.Request.Context(), p, c.Param("id"), project.ImageUpload{
			MilestoneID: c.PostForm("milestone_id"),
			Description: c.PostForm("description"),
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, img)
	}
}
