package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/http/response"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/services"
)

type EnrollmentHandler struct {
	log *logger.Logger
	svc services.EnrollmentService
}

func NewEnrollmentHandler(log *logger.Logger, svc services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{log: log.With("handler", "EnrollmentHandler"), svc: svc}
}

type paymentRequest struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Signature string          `json:"signature"`
	Method    string          `json:"payment_method"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" binding:"omitempty,len=3"`
	PaidAt    *time.Time      `json:"paid_at"`
}

type emiRequest struct {
	NumberOfInstallments int             `json:"number_of_installments" binding:"required,min=1,max=120"`
	InterestRate         *float64        `json:"interest_rate" binding:"omitempty,min=0"`
	DownPayment          decimal.Decimal `json:"down_payment"`
	ProcessingFee        decimal.Decimal `json:"processing_fee"`
	GracePeriodDays      *int            `json:"grace_period_days" binding:"omitempty,min=0"`
	StartDate            *time.Time      `json:"start_date"`
}

type criteriaRequest struct {
	RequiredProgress    *int  `json:"required_progress" binding:"omitempty,min=0,max=100"`
	RequiredAssignments *bool `json:"required_assignments"`
	RequiredQuizzes     *bool `json:"required_quizzes"`
}

func (r *criteriaRequest) input() *services.CriteriaInput {
	if r == nil {
		return nil
	}
	return &services.CriteriaInput{
		RequiredProgress:    r.RequiredProgress,
		RequiredAssignments: r.RequiredAssignments,
		RequiredQuizzes:     r.RequiredQuizzes,
	}
}

type createEnrollmentRequest struct {
	StudentID          string                 `json:"student_id" binding:"omitempty,uuid"`
	CourseID           string                 `json:"course_id" binding:"required,uuid"`
	EnrollmentType     string                 `json:"enrollment_type" binding:"omitempty,enrollment_type"`
	IsSelfPaced        bool                   `json:"is_self_paced"`
	ExpiryDate         *time.Time             `json:"expiry_date"`
	LearningPath       string                 `json:"learning_path" binding:"omitempty,learning_path"`
	PaymentStatus      string                 `json:"payment_status" binding:"omitempty,payment_status"`
	CompletionCriteria *criteriaRequest       `json:"completion_criteria"`
	Payment            *paymentRequest        `json:"payment_details"`
	Emi                *emiRequest            `json:"emi"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// POST /api/enrollments
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req createEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	studentID, ok := optionalUUID(c, req.StudentID)
	if !ok {
		return
	}
	in := services.CreateEnrollmentInput{
		StudentID:          studentID,
		CourseID:           uuid.MustParse(req.CourseID),
		EnrollmentType:     domain.EnrollmentType(req.EnrollmentType),
		IsSelfPaced:        req.IsSelfPaced,
		ExpiryDate:         req.ExpiryDate,
		LearningPath:       domain.LearningPath(req.LearningPath),
		PaymentStatus:      domain.PaymentStatus(req.PaymentStatus),
		CompletionCriteria: req.CompletionCriteria.input(),
		Metadata:           requestMetadata(c, req.Metadata),
	}
	if p := req.Payment; p != nil {
		in.Payment = &services.PaymentConfirmation{
			PaymentID: p.PaymentID,
			OrderID:   p.OrderID,
			Signature: p.Signature,
			Method:    p.Method,
			Amount:    p.Amount,
			Currency:  p.Currency,
			PaidAt:    p.PaidAt,
		}
	}
	if e := req.Emi; e != nil {
		in.Emi = &services.EmiRequest{
			NumberOfInstallments: e.NumberOfInstallments,
			InterestRate:         e.InterestRate,
			DownPayment:          e.DownPayment,
			ProcessingFee:        e.ProcessingFee,
			GracePeriodDays:      e.GracePeriodDays,
			StartDate:            e.StartDate,
		}
	}

	res, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, res)
}

// requestMetadata merges client metadata with what the request itself tells us.
func requestMetadata(c *gin.Context, in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	if ua := strings.TrimSpace(c.Request.UserAgent()); ua != "" {
		out["user_agent"] = ua
	}
	if ip := c.ClientIP(); ip != "" {
		out["ip_address"] = ip
	}
	if ref := strings.TrimSpace(c.Request.Referer()); ref != "" {
		out["referer"] = ref
	}
	return out
}

type listQuery struct {
	StudentID      string `form:"student_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,enrollment_status"`
	PaymentStatus  string `form:"payment_status" binding:"omitempty,payment_status"`
	EnrollmentType string `form:"enrollment_type" binding:"omitempty,enrollment_type"`
	IncludeExpired bool   `form:"include_expired"`
	Page           int    `form:"page" binding:"omitempty,min=1"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GET /api/enrollments
func (h *EnrollmentHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.RespondBindError(c, err)
		return
	}
	in := services.ListInput{
		Status:         domain.EnrollmentStatus(q.Status),
		PaymentStatus:  domain.PaymentStatus(q.PaymentStatus),
		EnrollmentType: domain.EnrollmentType(q.EnrollmentType),
		IncludeExpired: q.IncludeExpired,
		Page:           q.Page,
		Limit:          q.Limit,
	}
	if q.StudentID != "" {
		id := uuid.MustParse(q.StudentID)
		in.StudentID = &id
	}
	page, err := h.svc.List(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/enrollments/:id
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": view})
}

type updateEnrollmentRequest struct {
	StudentID          *uuid.UUID             `json:"student_id"`
	CourseID           *uuid.UUID             `json:"course_id"`
	Status             *string                `json:"status" binding:"omitempty,enrollment_status"`
	PaymentStatus      *string                `json:"payment_status" binding:"omitempty,payment_status"`
	IsSelfPaced        *bool                  `json:"is_self_paced"`
	ExpiryDate         *time.Time             `json:"expiry_date"`
	IsCompleted        *bool                  `json:"is_completed"`
	LearningPath       *string                `json:"learning_path" binding:"omitempty,learning_path"`
	CompletionCriteria *criteriaRequest       `json:"completion_criteria"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// PATCH /api/enrollments/:id
func (h *EnrollmentHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	in := services.UpdateEnrollmentInput{
		StudentID:          req.StudentID,
		CourseID:           req.CourseID,
		IsSelfPaced:        req.IsSelfPaced,
		ExpiryDate:         req.ExpiryDate,
		IsCompleted:        req.IsCompleted,
		CompletionCriteria: req.CompletionCriteria.input(),
		Metadata:           req.Metadata,
	}
	if req.Status != nil {
		st := domain.EnrollmentStatus(*req.Status)
		in.Status = &st
	}
	if req.PaymentStatus != nil {
		ps := domain.PaymentStatus(*req.PaymentStatus)
		in.PaymentStatus = &ps
	}
	if req.LearningPath != nil {
		lp := domain.LearningPath(*req.LearningPath)
		in.LearningPath = &lp
	}
	view, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": view})
}

// DELETE /api/enrollments/:id
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true, "id": id})
}

type filterQuery struct {
	Status         string `form:"status" binding:"omitempty,enrollment_status"`
	IncludeExpired bool   `form:"include_expired"`
}

func bindFilter(c *gin.Context) (services.ListFilter, bool) {
	var q filterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.RespondBindError(c, err)
		return services.ListFilter{}, false
	}
	return services.ListFilter{Status: domain.EnrollmentStatus(q.Status), IncludeExpired: q.IncludeExpired}, true
}

// GET /api/students/:id/enrollments
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	studentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	views, err := h.svc.ListByStudent(c.Request.Context(), studentID, f)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": views})
}

// GET /api/students/:id/enrollment-counts
func (h *EnrollmentHandler) CountsByStudent(c *gin.Context) {
	studentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	counts, err := h.svc.CountsByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"counts": counts})
}

// GET /api/courses/:id/enrollments
func (h *EnrollmentHandler) ListByCourse(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	views, err := h.svc.ListByCourse(c.Request.Context(), courseID, f)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": views})
}

type completeRequest struct {
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
	CourseID  string `json:"course_id" binding:"required,uuid"`
}

// POST /api/enrollments/complete
func (h *EnrollmentHandler) MarkCompleted(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	studentID, ok := optionalUUID(c, req.StudentID)
	if !ok {
		return
	}
	view, err := h.svc.MarkCompleted(c.Request.Context(), studentID, uuid.MustParse(req.CourseID))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": view})
}

// GET /api/enrollments/:id/emi
func (h *EnrollmentHandler) GetEmi(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetEmi(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"emi": view})
}

type installmentRequest struct {
	Status string `json:"status" binding:"required,installment_status"`
}

// POST /api/enrollments/:id/emi/installments/:number
func (h *EnrollmentHandler) RecordInstallment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	number, ok := intParam(c, "number")
	if !ok {
		return
	}
	var req installmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	view, err := h.svc.RecordInstallment(c.Request.Context(), id, number, domain.InstallmentStatus(req.Status))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"emi": view})
}
